package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/antigravity-dev/noetic/internal/atomicfile"
)

// ErrNotFound is returned when an addressed project or artifact does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrInvalidTransition is returned when UpdateStatus would violate the phase
// state machine of spec §4.3.
var ErrInvalidTransition = errors.New("store: invalid status transition")

const (
	projectFile = "project.json"
	graphFile   = "graph.json"
)

// Store is the ProjectStore of spec §4.1: atomic, append-oriented persistence
// of project metadata and phase artifacts under <data-root>/projects/<id>/.
type Store struct {
	root string

	mu    sync.Mutex // guards locks map only
	locks map[string]*sync.Mutex
}

// New constructs a Store rooted at dataRoot. The projects/ subdirectory is
// created lazily on first write.
func New(dataRoot string) *Store {
	return &Store{
		root:  dataRoot,
		locks: make(map[string]*sync.Mutex),
	}
}

// lockFor returns the per-project critical section, creating it if absent.
// This is the "one mutex per project id" policy of spec §5.
func (s *Store) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *Store) projectDir(id string) string {
	return filepath.Join(s.root, "projects", id)
}

// Create generates an id, writes project.json atomically, and returns the
// new Project.
func (s *Store) Create(topic string, cfg Config) (Project, error) {
	if topic == "" {
		return Project{}, fmt.Errorf("store: topic is required")
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	p := Project{
		ID:        id,
		Topic:     topic,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Config:    cfg,
	}

	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if err := s.writeProjectLocked(p); err != nil {
		return Project{}, err
	}
	return p, nil
}

// Get returns the persisted project, or ErrNotFound.
func (s *Store) Get(id string) (Project, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()
	return s.readProjectLocked(id)
}

// List returns all known projects sorted by creation time, oldest first.
func (s *Store) List() ([]Project, error) {
	projectsDir := filepath.Join(s.root, "projects")
	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: list projects: %w", err)
	}

	var out []Project
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p, err := s.Get(e.Name())
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Remove deletes the entire project directory.
func (s *Store) Remove(id string) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	dir := s.projectDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return ErrNotFound
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("store: remove project %q: %w", id, err)
	}

	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
	return nil
}

// UpdateStatus atomically rewrites project.json with a new status, rejecting
// transitions not permitted by the phase state machine.
func (s *Store) UpdateStatus(id string, status Status, note string) (Project, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.readProjectLocked(id)
	if err != nil {
		return Project{}, err
	}

	if !CanTransition(p.Status, status) {
		return Project{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, status)
	}

	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	if status == StatusError {
		p.LastError = note
	}
	if status != StatusPaused {
		p.Paused = false
	}

	if err := s.writeProjectLocked(p); err != nil {
		return Project{}, err
	}
	return p, nil
}

// Pause sets the cooperative pause flag the engine's checkpoints observe.
// It does not itself change Status; the engine transitions to StatusPaused
// once it reaches a checkpoint and persists the flag via UpdateStatus.
func (s *Store) Pause(id string) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.readProjectLocked(id)
	if err != nil {
		return err
	}
	p.Paused = true
	p.UpdatedAt = time.Now().UTC()
	return s.writeProjectLocked(p)
}

// Unpause clears the pause flag without changing Status (the engine's Resume
// path is responsible for the pending->phase transition).
func (s *Store) Unpause(id string) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.readProjectLocked(id)
	if err != nil {
		return err
	}
	p.Paused = false
	p.UpdatedAt = time.Now().UTC()
	return s.writeProjectLocked(p)
}

// IsPaused reports the cooperative pause flag without taking the write lock
// twice; safe to call from a hot checkpoint loop.
func (s *Store) IsPaused(id string) (bool, error) {
	p, err := s.Get(id)
	if err != nil {
		return false, err
	}
	return p.Paused, nil
}

// Resume clears Paused/FromPhase bookkeeping and sets Status back to pending
// so the engine can re-enter the state machine at fromPhase.
func (s *Store) Resume(id string, fromPhase string) (Project, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.readProjectLocked(id)
	if err != nil {
		return Project{}, err
	}
	if p.Status != StatusPaused && p.Status != StatusError {
		return Project{}, fmt.Errorf("store: project %q is not paused or errored (status=%s)", id, p.Status)
	}

	p.Status = StatusPending
	p.Paused = false
	p.FromPhase = fromPhase
	p.LastError = ""
	p.UpdatedAt = time.Now().UTC()

	if err := s.writeProjectLocked(p); err != nil {
		return Project{}, err
	}
	return p, nil
}

// WriteArtifact writes bytes to <project-dir>/relativePath via tmp-then-rename.
func (s *Store) WriteArtifact(id, relativePath string, data []byte) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	full := filepath.Join(s.projectDir(id), relativePath)
	return atomicfile.Write(full, data)
}

// ReadArtifact reads <project-dir>/relativePath, returning ErrNotFound if absent.
func (s *Store) ReadArtifact(id, relativePath string) ([]byte, error) {
	full := filepath.Join(s.projectDir(id), relativePath)
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: read artifact %q: %w", relativePath, err)
	}
	return data, nil
}

// WriteJSONArtifact marshals v at two-space indent and writes it atomically.
func (s *Store) WriteJSONArtifact(id, relativePath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal artifact %q: %w", relativePath, err)
	}
	return s.WriteArtifact(id, relativePath, data)
}

// ReadJSONArtifact reads and unmarshals <project-dir>/relativePath into v.
func (s *Store) ReadJSONArtifact(id, relativePath string, v any) error {
	data, err := s.ReadArtifact(id, relativePath)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: parse artifact %q: %w", relativePath, err)
	}
	return nil
}

// GetGraph reads graph.json if present.
func (s *Store) GetGraph(id string) (json.RawMessage, error) {
	return s.ReadArtifact(id, graphFile)
}

func (s *Store) readProjectLocked(id string) (Project, error) {
	data, err := os.ReadFile(filepath.Join(s.projectDir(id), projectFile))
	if err != nil {
		if os.IsNotExist(err) {
			return Project{}, ErrNotFound
		}
		return Project{}, fmt.Errorf("store: read project %q: %w", id, err)
	}
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return Project{}, fmt.Errorf("store: parse project %q: %w", id, err)
	}
	return p, nil
}

func (s *Store) writeProjectLocked(p Project) error {
	return atomicfile.WriteJSON(filepath.Join(s.projectDir(p.ID), projectFile), p)
}
