package investigation

import (
	"testing"

	"github.com/antigravity-dev/noetic/internal/pathway"
)

func TestNextBranchFirstMatchWins(t *testing.T) {
	level := pathway.Level{
		Branches: []pathway.Branch{
			{Signal: "actionType", Operator: pathway.OpEquals, Value: "ban", NextDepth: "2"},
			{Signal: "actionType", Operator: pathway.OpExists, NextDepth: "3"},
		},
	}

	depth, terminate := nextBranch(level, map[string]any{"actionType": "ban"})

	if terminate {
		t.Fatal("expected terminate = false")
	}
	if depth != "2" {
		t.Fatalf("depth = %q, want 2 (first matching branch)", depth)
	}
}

func TestNextBranchFallsThroughToLaterBranch(t *testing.T) {
	level := pathway.Level{
		Branches: []pathway.Branch{
			{Signal: "actionType", Operator: pathway.OpEquals, Value: "ban", NextDepth: "2"},
			{Signal: "actionType", Operator: pathway.OpExists, NextDepth: "3"},
		},
	}

	depth, terminate := nextBranch(level, map[string]any{"actionType": "warning"})

	if terminate {
		t.Fatal("expected terminate = false")
	}
	if depth != "3" {
		t.Fatalf("depth = %q, want 3", depth)
	}
}

func TestNextBranchTerminate(t *testing.T) {
	level := pathway.Level{
		Branches: []pathway.Branch{
			{Signal: "replicationExists", Operator: pathway.OpExists, Terminate: true},
		},
	}

	depth, terminate := nextBranch(level, map[string]any{"replicationExists": true})

	if !terminate {
		t.Fatal("expected terminate = true")
	}
	if depth != "" {
		t.Fatalf("depth = %q, want empty on terminate", depth)
	}
}

func TestNextBranchNoMatchReturnsEmpty(t *testing.T) {
	level := pathway.Level{
		Branches: []pathway.Branch{
			{Signal: "studyType", Operator: pathway.OpExists, NextDepth: "2A"},
		},
	}

	depth, terminate := nextBranch(level, map[string]any{})

	if terminate {
		t.Fatal("expected terminate = false")
	}
	if depth != "" {
		t.Fatalf("depth = %q, want empty when no branch matches", depth)
	}
}
