package pipeline

import (
	"testing"

	"github.com/antigravity-dev/noetic/internal/investigation"
)

func TestResultsBySubQuestionGroupsByManifestItem(t *testing.T) {
	manifest := EvidenceManifest{Items: []investigation.EvidenceItem{
		{EvidenceID: "e1", SubQuestionID: "sq1"},
		{EvidenceID: "e2", SubQuestionID: "sq1"},
		{EvidenceID: "e3", SubQuestionID: "sq2"},
	}}
	results := []investigation.PathwayResult{
		{EvidenceID: "e1"},
		{EvidenceID: "e2"},
		{EvidenceID: "e3"},
	}

	grouped := resultsBySubQuestion(manifest, results)

	if len(grouped["sq1"]) != 2 {
		t.Fatalf("sq1 results = %d, want 2", len(grouped["sq1"]))
	}
	if len(grouped["sq2"]) != 1 {
		t.Fatalf("sq2 results = %d, want 1", len(grouped["sq2"]))
	}
}

func TestQualifyingLevelsFlattensAcrossResults(t *testing.T) {
	results := []investigation.PathwayResult{
		{Levels: []investigation.LevelOutput{{Depth: "1"}, {Depth: "2"}}},
		{Levels: []investigation.LevelOutput{{Depth: "1"}}},
	}

	levels := qualifyingLevels(results)

	if len(levels) != 3 {
		t.Fatalf("levels = %d, want 3", len(levels))
	}
}

func TestDeriveFlagsSkipsGapsAndMissingEvidence(t *testing.T) {
	levels := []investigation.LevelOutput{
		{EvidenceFound: false, Findings: map[string]any{"industryFunded": true}},
		{EvidenceFound: true, Gap: true, Findings: map[string]any{"testimonialOnly": true}},
		{EvidenceFound: true, BranchSignals: map[string]any{"industryFunded": true}},
	}

	flags := deriveFlags(levels)

	if !flags.IndustryFunded {
		t.Fatal("expected industryFunded true from the one qualifying level")
	}
	if flags.TestimonialOnly {
		t.Fatal("expected testimonialOnly false, gap level should not count")
	}
	if !flags.MethodologySound {
		t.Fatal("expected methodologySound to default true absent a methodologyUnsound signal")
	}
}

func TestDeriveFlagsMethodologyUnsoundFlipsMethodologySound(t *testing.T) {
	levels := []investigation.LevelOutput{
		{EvidenceFound: true, Findings: map[string]any{"methodologyUnsound": true}},
	}

	flags := deriveFlags(levels)

	if flags.MethodologySound {
		t.Fatal("expected methodologySound false after a methodologyUnsound signal")
	}
}

func TestConsensusLevelDefaultsToSupportingWhenNoClaimSupportedSignal(t *testing.T) {
	// Ordinary (non-contrarian) pathways never report claimSupported;
	// found, non-gap, non-retracted evidence is itself the support signal
	// regardless of source quality, matching scenario 4's "5 of 5 items
	// support claim C" => consensusLevel 1.0.
	levels := []investigation.LevelOutput{
		{EvidenceFound: true, SourceRating: investigation.RatingA},
		{EvidenceFound: true, SourceRating: investigation.RatingF},
		{EvidenceFound: true, SourceRating: investigation.RatingF},
		{EvidenceFound: true, Gap: true, SourceRating: investigation.RatingA},
		{EvidenceFound: false, SourceRating: investigation.RatingA},
	}

	got := consensusLevel(levels)
	if got != 1.0 {
		t.Fatalf("consensusLevel = %v, want 1.0 (all qualifying low-rated sources still count as supporting)", got)
	}
}

func TestConsensusLevelHighQualityDisagreementIsNotHighConsensus(t *testing.T) {
	// Three high-quality (A/B) sources that flatly disagree with the
	// claim must not score 1.0 just because they are well-rated.
	levels := []investigation.LevelOutput{
		{EvidenceFound: true, SourceRating: investigation.RatingA, BranchSignals: map[string]any{"claimSupported": false}},
		{EvidenceFound: true, SourceRating: investigation.RatingB, BranchSignals: map[string]any{"claimSupported": false}},
		{EvidenceFound: true, SourceRating: investigation.RatingA, BranchSignals: map[string]any{"claimSupported": false}},
	}

	if got := consensusLevel(levels); got != 0 {
		t.Fatalf("consensusLevel = %v, want 0 (all three explicitly refute the claim)", got)
	}
}

func TestConsensusLevelMixedExplicitSupport(t *testing.T) {
	levels := []investigation.LevelOutput{
		{EvidenceFound: true, SourceRating: investigation.RatingA, Findings: map[string]any{"claimSupported": true}},
		{EvidenceFound: true, SourceRating: investigation.RatingB, BranchSignals: map[string]any{"claimSupported": false}},
		{EvidenceFound: true, SourceRating: investigation.RatingC},
	}

	got := consensusLevel(levels)
	want := 2.0 / 3.0
	if got != want {
		t.Fatalf("consensusLevel = %v, want %v", got, want)
	}
}

func TestConsensusLevelRetractedLevelDoesNotSupport(t *testing.T) {
	levels := []investigation.LevelOutput{
		{EvidenceFound: true, SourceRating: investigation.RatingA, Retracted: true},
		{EvidenceFound: true, SourceRating: investigation.RatingA},
	}

	got := consensusLevel(levels)
	if got != 0.5 {
		t.Fatalf("consensusLevel = %v, want 0.5 (retracted level counts toward found but not supporting)", got)
	}
}

func TestConsensusLevelNoQualifyingLevelsIsZero(t *testing.T) {
	levels := []investigation.LevelOutput{
		{EvidenceFound: false},
		{EvidenceFound: true, Gap: true},
	}

	if got := consensusLevel(levels); got != 0 {
		t.Fatalf("consensusLevel = %v, want 0", got)
	}
}

func TestFlagsToNamesIncludesOnlySetFlags(t *testing.T) {
	flags := investigation.Flags{
		IndustryFunded:     true,
		MethodologySound:   false,
		UnresolvedBiasFlags: true,
	}

	names := flagsToNames(flags)

	want := map[string]bool{"industryFunded": true, "methodologyUnsound": true, "unresolvedBiasFlags": true}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want keys %v", names, want)
	}
	for _, n := range names {
		if !want[n] {
			t.Fatalf("unexpected flag name %q", n)
		}
	}
}

func TestJoinRationale(t *testing.T) {
	cases := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{"a"}, "a"},
		{[]string{"a", "b", "c"}, "a; b; c"},
	}
	for _, c := range cases {
		if got := joinRationale(c.in); got != c.want {
			t.Fatalf("joinRationale(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
