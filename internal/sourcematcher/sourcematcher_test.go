package sourcematcher

import (
	"path/filepath"
	"testing"

	"github.com/antigravity-dev/noetic/internal/sources"
)

func newRegistry(t *testing.T) *sources.Registry {
	t.Helper()
	r, err := sources.Load(filepath.Join(t.TempDir(), "sources.json"))
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}
	return r
}

func TestMatchScoresByTagOverlap(t *testing.T) {
	r := newRegistry(t)
	r.Upsert(sources.Source{ID: "epa", Name: "EPA", Tags: []string{"water", "government", "contamination"}})
	r.Upsert(sources.Source{ID: "wiki", Name: "Wikipedia", Tags: []string{"general"}})

	m := New(r)
	matches := m.Match("water contamination risk", 5)
	if len(matches) != 1 || matches[0].Source.ID != "epa" {
		t.Fatalf("unexpected matches: %+v", matches)
	}
}

func TestMatchTieBreaksByInsertionOrder(t *testing.T) {
	r := newRegistry(t)
	r.Upsert(sources.Source{ID: "second", Tags: []string{"water"}})
	r.Upsert(sources.Source{ID: "first", Tags: []string{"water"}})

	m := New(r)
	matches := m.Match("water", 5)
	if len(matches) != 2 || matches[0].Source.ID != "second" || matches[1].Source.ID != "first" {
		t.Fatalf("expected insertion-order tie-break, got %+v", matches)
	}
}

func TestMatchRespectsMaxResults(t *testing.T) {
	r := newRegistry(t)
	for i := 0; i < 5; i++ {
		r.Upsert(sources.Source{ID: string(rune('a' + i)), Tags: []string{"water"}})
	}

	m := New(r)
	matches := m.Match("water", 2)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
}

func TestMatchExcludesBelowMinScore(t *testing.T) {
	r := newRegistry(t)
	r.Upsert(sources.Source{ID: "unrelated", Tags: []string{"astronomy"}})

	m := New(r)
	matches := m.Match("water contamination", 5)
	if len(matches) != 0 {
		t.Fatalf("expected no matches, got %+v", matches)
	}
}

func TestMatchDoesNotMutateRegistry(t *testing.T) {
	r := newRegistry(t)
	r.Upsert(sources.Source{ID: "epa", Tags: []string{"water"}})

	m := New(r)
	m.Match("water", 5)

	list := r.List()
	if len(list) != 1 || list[0].ID != "epa" {
		t.Fatalf("registry mutated: %+v", list)
	}
}
