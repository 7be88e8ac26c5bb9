// Package investigation executes a pathway against one evidence item —
// the per-level worker dispatch loop, branch evaluation, and the
// deterministic confidence scorer (spec §4.5).
package investigation

import "github.com/antigravity-dev/noetic/internal/graphbuilder"

// Confidence is the evidence-level rating, distinct from graphbuilder's
// node-level Confidence.
type Confidence string

const (
	ConfidenceVerified    Confidence = "V"
	ConfidencePlausible   Confidence = "P"
	ConfidenceUnverified  Confidence = "U"
	ConfidenceDisputed    Confidence = "D"
	ConfidenceRetracted   Confidence = "R"
)

// SourceRating is the A-F source reliability rating (spec §6.4).
type SourceRating string

const (
	RatingA SourceRating = "A"
	RatingB SourceRating = "B"
	RatingC SourceRating = "C"
	RatingD SourceRating = "D"
	RatingE SourceRating = "E"
	RatingF SourceRating = "F"
)

// EvidenceItem is one row of the evidence manifest (spec §3.3).
type EvidenceItem struct {
	EvidenceID             string                `json:"evidenceId"`
	SubQuestionID          string                `json:"subQuestionId"`
	Type                   string                `json:"type"`
	Description            string                `json:"description"`
	Citation               graphbuilder.Citation `json:"citation"`
	SourceReliability      SourceRating          `json:"sourceReliability"`
	InformationCredibility int                   `json:"informationCredibility"`
	TriggeredPathway       string                `json:"triggeredPathway"`
}

// LevelOutput is one pathway level's worker output (spec §3.5).
type LevelOutput struct {
	Depth          string                  `json:"depth"`
	EvidenceFound  bool                    `json:"evidenceFound"`
	SourceRating   SourceRating            `json:"sourceRating"`
	InfoRating     int                     `json:"infoRating"`
	Findings       map[string]any          `json:"findings"`
	BranchSignals  map[string]any          `json:"branchSignals"`
	Citations      []graphbuilder.Citation `json:"citations"`
	NextEvidenceTypes []string             `json:"nextEvidenceTypes,omitempty"`
	Retracted      bool                    `json:"retracted,omitempty"`
	Gap            bool                    `json:"gap,omitempty"`
	GapReason      string                  `json:"gapReason,omitempty"`
}

// PathwayResult is the complete execution record for one (evidenceItem,
// pathway) pair (spec §3.5).
type PathwayResult struct {
	PathwayID string        `json:"pathwayId"`
	EvidenceID string       `json:"evidenceId"`
	Levels    []LevelOutput `json:"levels"`
}

// Flags collects the qualitative signals the confidence scorer's
// modifiers key off of; callers (the adjudication phase) derive these
// from level findings/branchSignals before calling ComputeConfidence.
type Flags struct {
	IndustryFunded             bool
	IndependentlyReplicated    bool
	TestimonialOnly            bool
	CaseReportAnimalOrInVitroOnly bool
	SampleSizeUnder30          bool
	PHackingOrCherryPicking    bool
	CredibleContrarianCounter  bool
	LargeEffectSizeFromQualityStudy bool
	ConfirmedDoseResponse      bool
	UnresolvedBiasFlags        bool
	MethodologySound           bool
}

// ConsensusClaim is one claim surfaced during adjudication (spec §3.6).
type ConsensusClaim struct {
	Claim                      string  `json:"claim"`
	ConsensusLevel             float64 `json:"consensusLevel"`
	ContrarianAnalysisTriggered bool   `json:"contrarianAnalysisTriggered"`
	ContrarianResult           string  `json:"contrarianResult,omitempty"`
}

// AdjudicatedEvidence is the per-sub-question output of phase 4 (spec §3.6).
type AdjudicatedEvidence struct {
	EvidenceID          string           `json:"evidenceId"`
	Confidence          Confidence       `json:"confidence"`
	ConfidenceRationale string           `json:"confidenceRationale"`
	PathwayResultsRef   string           `json:"pathwayResultsRef"`
	Flags               []string         `json:"flags"`
	ConsensusClaims     []ConsensusClaim `json:"consensusClaims,omitempty"`
}
