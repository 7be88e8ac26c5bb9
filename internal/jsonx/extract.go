// Package jsonx extracts structured JSON from the free-form stdout that
// worker processes emit, tolerating the commentary and markdown fencing
// models tend to wrap their actual answer in.
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
)

// ExtractError reports that no strategy below could recover valid JSON.
type ExtractError struct {
	Snippet string
	Cause   error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("jsonx: could not extract JSON payload: %v (near %q)", e.Cause, e.Snippet)
}

func (e *ExtractError) Unwrap() error { return e.Cause }

// Extract recovers a JSON value from raw worker output and unmarshals it
// into v. It tries, in order:
//  1. the whole trimmed output, in case the worker emitted clean JSON
//  2. the first balanced {...} or [...] block found anywhere in the output
//  3. json-repair applied to that block, to recover from truncated output,
//     trailing commas, and unquoted keys
func Extract(raw string, v any) error {
	trimmed := strings.TrimSpace(stripCodeFence(raw))
	if trimmed == "" {
		return &ExtractError{Snippet: "", Cause: fmt.Errorf("empty output")}
	}

	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return nil
	}

	block := firstBalancedBlock(trimmed)
	if block == "" {
		return &ExtractError{Snippet: snippet(trimmed), Cause: fmt.Errorf("no JSON object or array found")}
	}

	if err := json.Unmarshal([]byte(block), v); err == nil {
		return nil
	}

	repaired, err := jsonrepair.RepairJSON(block)
	if err != nil {
		return &ExtractError{Snippet: snippet(block), Cause: fmt.Errorf("json-repair: %w", err)}
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return &ExtractError{Snippet: snippet(repaired), Cause: err}
	}
	return nil
}

// stripCodeFence removes a single leading/trailing ```json ... ``` fence if
// present, leaving the raw text otherwise untouched.
func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return raw
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return raw
	}
	lines = lines[1:]
	if last := len(lines) - 1; last >= 0 && strings.HasPrefix(strings.TrimSpace(lines[last]), "```") {
		lines = lines[:last]
	}
	return strings.Join(lines, "\n")
}

// firstBalancedBlock scans for the first '{' or '[' and returns the text up
// through its matching close, respecting string literals and escapes so
// braces inside quoted text don't throw off the count.
func firstBalancedBlock(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}

	open := rune(s[start])
	close := '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := rune(s[i])
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	// Unbalanced (likely truncated): hand back everything from start onward
	// and let json-repair attempt closure.
	return s[start:]
}

func snippet(s string) string {
	const maxLen = 200
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
