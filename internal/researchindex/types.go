// Package researchindex maintains the cross-project index of completed
// research and serves ranked lookups so a new pipeline run can surface and
// cite related prior work.
package researchindex

// Stats summarizes a completed project's knowledge graph.
type Stats struct {
	Nodes     int `json:"nodes"`
	Edges     int `json:"edges"`
	Citations int `json:"citations"`
}

// Entry is one completed project in the index (spec §3.8).
type Entry struct {
	ProjectID   string   `json:"projectId"`
	Topic       string   `json:"topic"`
	CompletedAt string   `json:"completedAt"` // RFC3339
	Stats       Stats    `json:"stats"`
	Tags        []string `json:"tags"`
	SearchTerms []string `json:"searchTerms"`

	// needsRebuild is derived at load time, never persisted: an entry
	// written before searchTerms existed still round-trips, it just gets
	// flagged until the engine's RebuildIndex recomputes it.
	needsRebuild bool
}

// NeedsRebuild reports whether this entry predates searchTerms and should
// be recomputed by the engine's RebuildIndex.
func (e Entry) NeedsRebuild() bool {
	return e.needsRebuild || len(e.SearchTerms) == 0
}
