package pipeline

import (
	"strings"
	"testing"

	"github.com/antigravity-dev/noetic/internal/graphbuilder"
)

func TestJoinValidationErrorsEmpty(t *testing.T) {
	if got := joinValidationErrors(nil); got != "" {
		t.Fatalf("joinValidationErrors(nil) = %q, want empty", got)
	}
}

func TestJoinValidationErrorsJoinsWithNewlines(t *testing.T) {
	errs := []graphbuilder.ValidationError{
		{Invariant: "node-id-unique", Detail: "duplicate node id \"n1\""},
		{Invariant: "edge-endpoint-exists", Detail: "edge 0 references missing source \"n9\""},
	}

	got := joinValidationErrors(errs)

	if strings.Count(got, "\n") != 1 {
		t.Fatalf("joinValidationErrors joined %d lines with %q, want exactly one newline", len(errs), got)
	}
	for _, e := range errs {
		if !strings.Contains(got, e.Detail) {
			t.Fatalf("joinValidationErrors result %q missing detail %q", got, e.Detail)
		}
	}
}
