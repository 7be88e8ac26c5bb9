package researchindex

import (
	"path/filepath"
	"testing"
)

func TestRecordThenSearchMatchesTopic(t *testing.T) {
	idx, err := Load(filepath.Join(t.TempDir(), "research-index.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	e := Entry{
		ProjectID:   "proj-1",
		Topic:       "PFAS contamination in drinking water",
		CompletedAt: "2026-01-01T00:00:00Z",
		Stats:       Stats{Nodes: 10, Edges: 5, Citations: 3},
		Tags:        []string{"water", "pfas"},
		SearchTerms: []string{"pfas", "water", "contamination"},
	}
	if err := idx.Record(e); err != nil {
		t.Fatalf("record: %v", err)
	}

	results := idx.Search("PFAS water contamination", 5)
	if len(results) != 1 || results[0].ProjectID != "proj-1" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestRecordIsIdempotentUpsert(t *testing.T) {
	idx, _ := Load(filepath.Join(t.TempDir(), "research-index.json"))
	e := Entry{ProjectID: "proj-1", Topic: "topic one", SearchTerms: []string{"topic"}}

	idx.Record(e)
	e.Topic = "topic one updated"
	idx.Record(e)

	results := idx.Search("updated", 5)
	if len(results) != 1 {
		t.Fatalf("expected a single entry after idempotent record, got %d", len(results))
	}
}

func TestSearchTwoProjectsSameTopicAreDistinctEntries(t *testing.T) {
	idx, _ := Load(filepath.Join(t.TempDir(), "research-index.json"))
	idx.Record(Entry{ProjectID: "proj-1", Topic: "PFAS water safety", SearchTerms: []string{"pfas", "water"}})
	idx.Record(Entry{ProjectID: "proj-2", Topic: "PFAS water safety", SearchTerms: []string{"pfas", "water"}})

	results := idx.Search("PFAS water safety", 10)
	if len(results) != 2 {
		t.Fatalf("expected two distinct entries for the same topic, got %d", len(results))
	}
}

func TestSearchAppliesDynamicCutoff(t *testing.T) {
	idx, _ := Load(filepath.Join(t.TempDir(), "research-index.json"))
	idx.Record(Entry{ProjectID: "strong", Topic: "PFAS water contamination", Tags: []string{"pfas", "water"}, SearchTerms: []string{"pfas", "water", "contamination"}})
	idx.Record(Entry{ProjectID: "weak", Topic: "unrelated agricultural policy", SearchTerms: []string{"agricultural", "policy", "water"}})

	results := idx.Search("PFAS water contamination", 10)
	for _, r := range results {
		if r.ProjectID == "weak" {
			t.Fatalf("expected low-scoring entry to be cut, got results: %+v", results)
		}
	}
}

func TestSearchNoMatchesReturnsEmpty(t *testing.T) {
	idx, _ := Load(filepath.Join(t.TempDir(), "research-index.json"))
	idx.Record(Entry{ProjectID: "proj-1", Topic: "lead paint exposure", SearchTerms: []string{"lead", "paint"}})

	results := idx.Search("unrelated quantum computing", 10)
	if len(results) != 0 {
		t.Fatalf("expected no matches, got %+v", results)
	}
}

func TestSearchIsOrderingStableAcrossRuns(t *testing.T) {
	idx, _ := Load(filepath.Join(t.TempDir(), "research-index.json"))
	idx.Record(Entry{ProjectID: "a", Topic: "PFAS water", SearchTerms: []string{"pfas", "water"}})
	idx.Record(Entry{ProjectID: "b", Topic: "PFAS water", SearchTerms: []string{"pfas", "water"}})

	first := idx.Search("PFAS water", 10)
	second := idx.Search("PFAS water", 10)
	if len(first) != len(second) {
		t.Fatalf("length mismatch between runs")
	}
	for i := range first {
		if first[i].ProjectID != second[i].ProjectID {
			t.Fatalf("ordering differs at %d: %q vs %q", i, first[i].ProjectID, second[i].ProjectID)
		}
	}
}

func TestLoadFlagsEntriesMissingSearchTermsForRebuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "research-index.json")
	idx, _ := Load(path)
	idx.Record(Entry{ProjectID: "proj-1", Topic: "topic", SearchTerms: nil})

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	stale := reloaded.NeedsRebuild()
	if len(stale) != 1 || stale[0].ProjectID != "proj-1" {
		t.Fatalf("expected proj-1 flagged for rebuild, got %+v", stale)
	}
}

func TestRebuildTermsIsDeterministicAndDeduplicated(t *testing.T) {
	a := RebuildTerms("PFAS water", []string{"water"}, []string{"PFAS exposure"})
	b := RebuildTerms("PFAS water", []string{"water"}, []string{"PFAS exposure"})
	if len(a) != len(b) {
		t.Fatalf("non-deterministic term count")
	}
	seen := map[string]int{}
	for _, term := range a {
		seen[term]++
	}
	for term, count := range seen {
		if count > 1 {
			t.Fatalf("term %q duplicated", term)
		}
	}
}
