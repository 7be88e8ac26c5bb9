package pathway

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/antigravity-dev/noetic/internal/noeticerr"
)

var validWorkerTemplates = map[WorkerTemplate]bool{
	WorkerResearch: true,
	WorkerReview:   true,
	WorkerImpl:     true,
}

var validOperators = map[BranchOperator]bool{
	OpEquals: true, OpNotEquals: true, OpContains: true,
	OpGreater: true, OpLess: true, OpIn: true,
	OpExists: true, OpNotExists: true,
}

// Validate enforces the pathway schema of spec §3.4.
func (p Pathway) Validate() error {
	if !idPattern.MatchString(p.ID) {
		return &noeticerr.InvalidInputError{Field: "id", Message: fmt.Sprintf("pathway id %q does not match ^P-[A-Z]{2,4}$", p.ID)}
	}
	if strings.TrimSpace(p.Name) == "" {
		return &noeticerr.InvalidInputError{Field: "name", Message: "pathway name is required"}
	}
	if strings.TrimSpace(p.Version) == "" {
		return &noeticerr.InvalidInputError{Field: "version", Message: "pathway version is required"}
	}
	if len(p.Levels) == 0 {
		return &noeticerr.InvalidInputError{Field: "levels", Message: "pathway must define at least one level"}
	}
	if len(p.Levels) > 4 {
		return &noeticerr.InvalidInputError{Field: "levels", Message: fmt.Sprintf("pathway %q defines %d levels, max is 4", p.ID, len(p.Levels))}
	}

	seen := make(map[string]bool, len(p.Levels))
	for _, level := range p.Levels {
		if strings.TrimSpace(level.Depth) == "" {
			return &noeticerr.InvalidInputError{Field: "levels[].depth", Message: "level depth is required"}
		}
		if seen[level.Depth] {
			return &noeticerr.InvalidInputError{Field: "levels[].depth", Message: fmt.Sprintf("duplicate level depth %q", level.Depth)}
		}
		seen[level.Depth] = true

		if !validWorkerTemplates[level.WorkerTemplate] {
			return &noeticerr.InvalidInputError{Field: "levels[].workerTemplate", Message: fmt.Sprintf("unknown worker template %q", level.WorkerTemplate)}
		}
		for _, b := range level.Branches {
			if !validOperators[b.Operator] {
				return &noeticerr.InvalidInputError{Field: "levels[].branches[].operator", Message: fmt.Sprintf("unknown branch operator %q", b.Operator)}
			}
		}
	}
	return nil
}

// Registry is the immutable, load-once set of pathway definitions.
type Registry struct {
	byID map[string]Pathway
}

// LoadDir reads every <id>.json file in dir and validates it, returning a
// Registry. Pathway files are read-only after load (spec §5).
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("pathway: read dir %q: %w", dir, err)
	}

	byID := make(map[string]Pathway)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("pathway: read %q: %w", path, err)
		}
		var p Pathway
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("pathway: parse %q: %w", path, err)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("pathway: validate %q: %w", path, err)
		}
		if _, dup := byID[p.ID]; dup {
			return nil, &noeticerr.InvariantViolationError{Invariant: "pathway-id-unique", Detail: fmt.Sprintf("duplicate pathway id %q across files", p.ID)}
		}
		byID[p.ID] = p
	}

	return &Registry{byID: byID}, nil
}

// Get returns the pathway with the given id.
func (r *Registry) Get(id string) (Pathway, error) {
	p, ok := r.byID[id]
	if !ok {
		return Pathway{}, &noeticerr.NotFoundError{Kind: "pathway", ID: id}
	}
	return p, nil
}

// IDs returns every registered pathway id in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ForTrigger returns every pathway whose trigger matches the given evidence
// type, sorted by id for determinism.
func (r *Registry) ForTrigger(evidenceType string) []Pathway {
	var out []Pathway
	for _, p := range r.byID {
		if p.Trigger.EvidenceType == evidenceType {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
