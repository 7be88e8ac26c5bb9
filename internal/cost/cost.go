// Package cost estimates per-dispatch token usage and USD cost. It is
// advisory only: nothing here blocks a dispatch, and the numbers it
// produces are recorded to the ledger for observation, never consulted
// by the phase state machine to gate a transition.
package cost

import (
	"regexp"
	"strconv"
)

// Usage holds input/output token counts for one worker dispatch.
type Usage struct {
	Input  int
	Output int
}

var (
	// strategosd reports usage in this form at the end of a worker's output.
	tokenRe  = regexp.MustCompile(`Tokens: (\d+) input, (\d+) output`)
	inputRe  = regexp.MustCompile(`Input tokens: (\d+)`)
	outputRe = regexp.MustCompile(`Output tokens: (\d+)`)
)

// ExtractUsage parses token counts from a worker's raw output, falling
// back to a length-based estimate when the worker didn't report usage.
func ExtractUsage(output, prompt string) Usage {
	var u Usage

	if m := tokenRe.FindStringSubmatch(output); len(m) == 3 {
		u.Input, _ = strconv.Atoi(m[1])
		u.Output, _ = strconv.Atoi(m[2])
	} else {
		if m := inputRe.FindStringSubmatch(output); len(m) == 2 {
			u.Input, _ = strconv.Atoi(m[1])
		}
		if m := outputRe.FindStringSubmatch(output); len(m) == 2 {
			u.Output, _ = strconv.Atoi(m[1])
		}
	}

	if u.Input == 0 {
		u.Input = estimateTokens(prompt)
	}
	if u.Output == 0 {
		u.Output = estimateTokens(output)
	}
	return u
}

// estimateTokens approximates token count at roughly 4 characters per token.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	tokens := len(text) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// USD computes the dollar cost of a Usage at the given per-mille-token
// prices (cost per 1000 tokens, matching config.Cost's unit).
func USD(u Usage, inputPerMille, outputPerMille float64) float64 {
	input := (float64(u.Input) / 1000.0) * inputPerMille
	output := (float64(u.Output) / 1000.0) * outputPerMille
	return input + output
}

// CapExceeded reports whether spentUSD has crossed capUSD. A non-positive
// cap means no cap is configured.
func CapExceeded(spentUSD, capUSD float64) bool {
	if capUSD <= 0 {
		return false
	}
	return spentUSD >= capUSD
}
