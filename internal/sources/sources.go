// Package sources manages the flat, externally-authored data-source
// registry (spec §3.9). The core only reads and serves it; the file itself
// is edited by tooling outside this module's scope.
package sources

import (
	"os"
	"sync"

	"github.com/antigravity-dev/noetic/internal/atomicfile"
	"github.com/antigravity-dev/noetic/internal/noeticerr"
)

// Source is one registered data source a pathway worker may be pointed at.
type Source struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	BaseURL        string   `json:"baseUrl,omitempty"`
	Tags           []string `json:"tags"`
	ExampleQueries []string `json:"exampleQueries,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

// Registry is the in-memory, disk-backed source list, keyed by id.
// Insertion order is preserved for SourceMatcher's tie-break rule.
type Registry struct {
	path string

	mu      sync.RWMutex
	order   []string
	entries map[string]Source
}

// Load reads path (a JSON array of Source) into a Registry. A missing file
// is treated as an empty registry rather than an error, since the external
// editor may not have created one yet.
func Load(path string) (*Registry, error) {
	r := &Registry{path: path, entries: make(map[string]Source)}
	if err := r.reloadLocked(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the backing file, for transports that want to observe
// out-of-band edits. Nothing in this module calls it automatically.
func (r *Registry) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reloadLocked()
}

func (r *Registry) reloadLocked() error {
	var list []Source
	if err := atomicfile.ReadJSON(r.path, &list); err != nil {
		if os.IsNotExist(err) {
			r.entries = make(map[string]Source)
			r.order = nil
			return nil
		}
		return err
	}

	entries := make(map[string]Source, len(list))
	order := make([]string, 0, len(list))
	for _, s := range list {
		if _, dup := entries[s.ID]; !dup {
			order = append(order, s.ID)
		}
		entries[s.ID] = s
	}
	r.entries = entries
	r.order = order
	return nil
}

// List returns every source in file/insertion order.
func (r *Registry) List() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Source, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

// Get returns the source with the given id.
func (r *Registry) Get(id string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.entries[id]
	if !ok {
		return Source{}, &noeticerr.NotFoundError{Kind: "source", ID: id}
	}
	return s, nil
}

// Upsert inserts or replaces a source by id and persists the registry.
func (r *Registry) Upsert(s Source) error {
	if s.ID == "" {
		return &noeticerr.InvalidInputError{Field: "id", Message: "source id is required"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[s.ID]; !exists {
		r.order = append(r.order, s.ID)
	}
	r.entries[s.ID] = s
	return r.persistLocked()
}

// Delete removes a source by id and persists the registry.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return &noeticerr.NotFoundError{Kind: "source", ID: id}
	}
	delete(r.entries, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return r.persistLocked()
}

func (r *Registry) persistLocked() error {
	list := make([]Source, 0, len(r.order))
	for _, id := range r.order {
		list = append(list, r.entries[id])
	}
	return atomicfile.WriteJSON(r.path, list)
}
