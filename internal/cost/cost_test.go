package cost

import "testing"

func TestExtractUsageParsesCombinedForm(t *testing.T) {
	u := ExtractUsage("some output\nTokens: 120 input, 45 output", "prompt")
	if u.Input != 120 || u.Output != 45 {
		t.Fatalf("unexpected usage: %+v", u)
	}
}

func TestExtractUsageParsesSeparateForm(t *testing.T) {
	u := ExtractUsage("Input tokens: 10\nOutput tokens: 20", "prompt")
	if u.Input != 10 || u.Output != 20 {
		t.Fatalf("unexpected usage: %+v", u)
	}
}

func TestExtractUsageFallsBackToEstimate(t *testing.T) {
	u := ExtractUsage("no usage info here, just sixteen chars", "prompt text")
	if u.Input == 0 || u.Output == 0 {
		t.Fatalf("expected non-zero estimate, got %+v", u)
	}
}

func TestUSDComputesWeightedCost(t *testing.T) {
	got := USD(Usage{Input: 1000, Output: 1000}, 1.0, 2.0)
	if got != 3.0 {
		t.Fatalf("expected 3.0, got %v", got)
	}
}

func TestCapExceededTreatsNonPositiveCapAsUnbounded(t *testing.T) {
	if CapExceeded(1000, 0) {
		t.Fatalf("expected no cap enforcement when capUSD <= 0")
	}
}

func TestCapExceededTriggersAtOrAboveCap(t *testing.T) {
	if !CapExceeded(10, 10) {
		t.Fatalf("expected cap to trigger at exactly the cap")
	}
	if CapExceeded(9.99, 10) {
		t.Fatalf("expected cap not to trigger below the cap")
	}
}
