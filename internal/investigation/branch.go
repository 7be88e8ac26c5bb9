package investigation

import (
	"fmt"
	"strings"

	"github.com/antigravity-dev/noetic/internal/pathway"
)

// EvaluateBranch reports whether signals satisfy branch b's condition
// (spec §4.5 step 3), implementing all eight branch operators.
func EvaluateBranch(b pathway.Branch, signals map[string]any) bool {
	actual, present := signals[b.Signal]

	switch b.Operator {
	case pathway.OpExists:
		return present
	case pathway.OpNotExists:
		return !present
	case pathway.OpEquals:
		return present && looseEquals(actual, b.Value)
	case pathway.OpNotEquals:
		return !present || !looseEquals(actual, b.Value)
	case pathway.OpContains:
		return present && containsValue(actual, b.Value)
	case pathway.OpGreater:
		af, aok := toFloat(actual)
		bf, bok := toFloat(b.Value)
		return present && aok && bok && af > bf
	case pathway.OpLess:
		af, aok := toFloat(actual)
		bf, bok := toFloat(b.Value)
		return present && aok && bok && af < bf
	case pathway.OpIn:
		return present && inValue(b.Value, actual)
	default:
		return false
	}
}

func looseEquals(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func containsValue(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		return strings.Contains(h, fmt.Sprintf("%v", needle))
	case []any:
		for _, item := range h {
			if looseEquals(item, needle) {
				return true
			}
		}
	}
	return false
}

func inValue(set, needle any) bool {
	items, ok := set.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if looseEquals(item, needle) {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
