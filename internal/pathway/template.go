package pathway

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderPattern matches {{namespace.dotted.path}}.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)((?:\.[a-zA-Z0-9_]+)*)\s*\}\}`)

// Task is the interpolated, worker-ready task description for one level.
type Task struct {
	Purpose         string
	KeyTasks        string
	EndState        string
	RequiredOutputs []RequiredOutputField
}

// BuildTask interpolates a level's task template against the evidence item
// and the parent level's output, both supplied as plain maps (the shapes
// produced by jsonx.Extract). Unknown placeholders resolve to the empty
// string, never to an "undefined"-style literal, matching spec §4.4.
func BuildTask(level Level, evidence map[string]any, parent map[string]any) Task {
	scope := map[string]map[string]any{
		"evidence": evidence,
		"parent":   parent,
	}
	return Task{
		Purpose:         interpolate(level.Task.Purpose, scope),
		KeyTasks:        interpolate(level.Task.KeyTasks, scope),
		EndState:        interpolate(level.Task.EndState, scope),
		RequiredOutputs: level.RequiredOutputs,
	}
}

func interpolate(tmpl string, scope map[string]map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		namespace := groups[1]
		path := strings.TrimPrefix(groups[2], ".")

		obj, ok := scope[namespace]
		if !ok || obj == nil {
			return ""
		}
		value, ok := lookupPath(obj, path)
		if !ok {
			return ""
		}
		return stringify(value)
	})
}

// lookupPath walks a dotted path through nested maps, e.g. "citation.doi".
func lookupPath(obj map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	segments := strings.Split(path, ".")
	var cur any = obj
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
