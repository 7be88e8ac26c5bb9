// Package pipeline drives a research project through the phase state
// machine (plan -> classify -> investigate -> adjudicate -> synthesize)
// and exposes the transport-agnostic control surface consumed by a
// front end.
package pipeline

import "github.com/antigravity-dev/noetic/internal/investigation"

// Status is the closed set of protocol-agnostic outcomes the control
// surface returns alongside a value.
type Status string

const (
	StatusOK            Status = "ok"
	StatusCreated       Status = "created"
	StatusBadRequest    Status = "bad-request"
	StatusNotFound      Status = "not-found"
	StatusConflict      Status = "conflict"
	StatusInternalError Status = "internal-error"
)

// SubQuestion is one entry of a Plan.
type SubQuestion struct {
	ID                   string   `json:"id"`
	Text                 string   `json:"text"`
	ExpectedEvidenceTypes []string `json:"expectedEvidenceTypes,omitempty"`
}

// Plan is phase 1's output: 5-8 sub-questions (spec §3.2).
type Plan struct {
	SubQuestions []SubQuestion `json:"subQuestions"`
}

// EvidenceManifest is classify's output: evidence items keyed under
// sub-questions (spec §3.3).
type EvidenceManifest struct {
	Items []investigation.EvidenceItem `json:"items"`
}

// contrarianPathwayID is the fixed pathway the adjudicate phase spawns
// when a non-contrarian claim exceeds the consensus threshold (spec
// §3.6 invariant 3).
const contrarianPathwayID = "P-CON"

const consensusContrarianThreshold = 0.80
