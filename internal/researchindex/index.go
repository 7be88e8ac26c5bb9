package researchindex

import (
	"os"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/antigravity-dev/noetic/internal/atomicfile"
	"github.com/antigravity-dev/noetic/internal/tokenize"
)

// These weights score a match by which field of an entry it was found in:
// topic outranks tags, which outranks searchTerms (spec §4.7 step 3).
const (
	weightTopic       = 3.0
	weightTags        = 2.0
	weightSearchTerms = 1.0
	coverageBonus     = 0.25
)

// Index is the process-wide, disk-backed cross-project index.
type Index struct {
	path string

	mu      sync.RWMutex
	entries map[string]Entry // keyed by projectId, never by topic (see DESIGN.md)
}

// Load reads the canonical index file. A missing file is an empty index.
func Load(path string) (*Index, error) {
	idx := &Index{path: path, entries: make(map[string]Entry)}
	var list []Entry
	if err := atomicfile.ReadJSON(path, &list); err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, err
	}
	for _, e := range list {
		e.needsRebuild = len(e.SearchTerms) == 0
		idx.entries[e.ProjectID] = e
	}
	return idx, nil
}

// Record idempotently inserts or replaces the entry for e.ProjectID.
func (idx *Index) Record(e Entry) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[e.ProjectID] = e
	return idx.persistLocked()
}

// NeedsRebuild lists every entry currently flagged for rebuild.
func (idx *Index) NeedsRebuild() []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []Entry
	for _, e := range idx.entries {
		if e.NeedsRebuild() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out
}

// RebuildTerms recomputes SearchTerms for an entry from its topic, tags,
// and the given top-N node labels/summaries. Callers (PipelineEngine) are
// responsible for sourcing those labels from the project's graph;
// RebuildTerms itself holds no dependency on GraphBuilder to avoid an import cycle.
func RebuildTerms(topic string, tags []string, nodeLabels []string) []string {
	bag := tokenize.Tokenize(topic, nil)
	for _, tag := range tags {
		bag = append(bag, tokenize.Tokenize(tag, nil)...)
	}
	for _, label := range nodeLabels {
		bag = append(bag, tokenize.Tokenize(label, nil)...)
	}
	return lo.Uniq(bag)
}

func (idx *Index) persistLocked() error {
	list := make([]Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ProjectID < list[j].ProjectID })
	return atomicfile.WriteJSON(idx.path, list)
}

// snapshot takes an immutable copy of entries under a read lock, so Search
// can rank without holding the lock (spec §5: "reads may proceed
// concurrently on an immutable snapshot").
func (idx *Index) snapshot() []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out
}

// scored pairs an entry with its query score, for stable sorting.
type scored struct {
	entry Entry
	score float64
}

// Search ranks entries against query per spec §4.7 step 3-4.
func (idx *Index) Search(query string, limit int) []Entry {
	if limit <= 0 {
		limit = 10
	}

	queryTokens := tokenize.Expand(tokenize.Tokenize(query, nil), nil)
	if len(queryTokens) == 0 {
		return nil
	}

	entries := idx.snapshot()
	results := make([]scored, 0, len(entries))
	for _, e := range entries {
		score, distinct := scoreEntry(e, queryTokens)
		if score <= 0 {
			continue
		}
		score += float64(distinct) * coverageBonus
		results = append(results, scored{entry: e, score: score})
	}

	if len(results) == 0 {
		return nil
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].entry.ProjectID < results[j].entry.ProjectID
	})

	top := results[0].score
	cutoff := top * 0.5

	out := make([]Entry, 0, limit)
	for _, r := range results {
		if r.score < cutoff {
			break
		}
		out = append(out, r.entry)
		if len(out) >= limit {
			break
		}
	}

	return out
}

func scoreEntry(e Entry, queryTokens []string) (score float64, distinctMatches int) {
	topicSet := tokenize.Tokenize(e.Topic, nil).Set()
	tagSet := tokenize.Tokens(lo.FlatMap(e.Tags, func(tag string, _ int) []string {
		return tokenize.Tokenize(tag, nil)
	})).Set()
	termSet := tokenize.Tokens(e.SearchTerms).Set()

	matched := make(map[string]bool, len(queryTokens))
	for _, tok := range queryTokens {
		if topicSet[tok] {
			score += weightTopic
			matched[tok] = true
		}
		if tagSet[tok] {
			score += weightTags
			matched[tok] = true
		}
		if termSet[tok] {
			score += weightSearchTerms
			matched[tok] = true
		}
	}
	return score, len(matched)
}
