package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/antigravity-dev/noetic/internal/config"
	"github.com/antigravity-dev/noetic/internal/eventbus"
	"github.com/antigravity-dev/noetic/internal/graphbuilder"
	"github.com/antigravity-dev/noetic/internal/researchindex"
	"github.com/antigravity-dev/noetic/internal/sourcematcher"
	"github.com/antigravity-dev/noetic/internal/sources"
	"github.com/antigravity-dev/noetic/internal/store"
)

// Engine is the transport-agnostic control surface of spec §6.2: every
// method returns a plain Go value plus a closed Status, so any future
// HTTP/SSE layer is a pure adapter over it (spec §9, "the teacher's own
// internal/api is a thin adapter over internal/scheduler/internal/store").
type Engine struct {
	Store    *store.Store
	Bus      *eventbus.Bus
	Sources  *sources.Registry
	Matcher  *sourcematcher.Matcher
	Index    *researchindex.Index
	Cfg      *config.Config
	Logger   *slog.Logger

	// Start, when non-nil, launches a pipeline run for a project (plan
	// through synthesize, or Resume starting at fromPhase). The
	// composition root wires this to a Temporal client's
	// ExecuteWorkflow call; Engine itself holds no Temporal dependency.
	Start func(ctx context.Context, projectID, fromPhase string) error

	// Signal, when non-nil, delivers PauseSignalName to a project's
	// in-flight workflow execution. The composition root wires this to a
	// Temporal client's SignalWorkflow call, the same way Start wires
	// ExecuteWorkflow; without it, PauseProject would only flip the
	// on-disk flag and the running execution would never notice.
	Signal func(ctx context.Context, projectID string) error
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// CreateProject validates and persists a new project, then asynchronously
// starts its pipeline run.
func (e *Engine) CreateProject(ctx context.Context, topic string, cfg store.Config) (store.Project, Status) {
	if topic == "" {
		return store.Project{}, StatusBadRequest
	}
	cfg.InvestigationBudget = e.Cfg.ClampInvestigationBudget(cfg.InvestigationBudget)

	p, err := e.Store.Create(topic, cfg)
	if err != nil {
		e.logger().Error("create project failed", "err", err)
		return store.Project{}, StatusInternalError
	}

	if e.Start != nil {
		if err := e.Start(ctx, p.ID, ""); err != nil {
			e.logger().Error("start pipeline run failed", "project", p.ID, "err", err)
		}
	}
	return p, StatusCreated
}

// GetProject returns the persisted project.
func (e *Engine) GetProject(id string) (store.Project, Status) {
	p, err := e.Store.Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Project{}, StatusNotFound
		}
		return store.Project{}, StatusInternalError
	}
	return p, StatusOK
}

// ListProjects returns every known project.
func (e *Engine) ListProjects() ([]store.Project, Status) {
	ps, err := e.Store.List()
	if err != nil {
		return nil, StatusInternalError
	}
	return ps, StatusOK
}

// DeleteProject removes a project's entire directory and releases its
// event subscribers.
func (e *Engine) DeleteProject(id string) Status {
	if err := e.Store.Remove(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return StatusNotFound
		}
		return StatusInternalError
	}
	if e.Bus != nil {
		e.Bus.Close(id)
	}
	return StatusOK
}

// PauseProject sets the on-disk pause flag and signals the project's
// in-flight workflow execution via Signal, so a mid-phase run actually
// stops at its next checkpoint (spec §4.3/§5) instead of running to
// completion while project.json falsely claims paused.
func (e *Engine) PauseProject(ctx context.Context, id string) Status {
	if err := e.Store.Pause(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return StatusNotFound
		}
		return StatusInternalError
	}
	if e.Signal != nil {
		if err := e.Signal(ctx, id); err != nil {
			e.logger().Error("pause signal failed", "project", id, "err", err)
			return StatusInternalError
		}
	}
	if e.Bus != nil {
		e.Bus.Publish(eventbus.Event{ProjectID: id, Type: eventbus.EventProjectPaused})
	}
	return StatusOK
}

// UnpauseProject clears the pause flag without re-entering the state
// machine; use ResumeProject to do that.
func (e *Engine) UnpauseProject(id string) Status {
	if err := e.Store.Unpause(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return StatusNotFound
		}
		return StatusInternalError
	}
	if e.Bus != nil {
		e.Bus.Publish(eventbus.Event{ProjectID: id, Type: eventbus.EventProjectResumed})
	}
	return StatusOK
}

// ResumeProject re-enters the state machine at fromPhase, starting a
// fresh pipeline run; phases before fromPhase are not re-executed.
func (e *Engine) ResumeProject(ctx context.Context, id, fromPhase string) (store.Project, Status) {
	if fromPhase == "" {
		var cp checkpointRecord
		if err := e.Store.ReadJSONArtifact(id, checkpointArtifact, &cp); err == nil {
			fromPhase = cp.Phase
		}
	}

	p, err := e.Store.Resume(id, fromPhase)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Project{}, StatusNotFound
		}
		return store.Project{}, StatusConflict
	}
	if e.Start != nil {
		if err := e.Start(ctx, id, fromPhase); err != nil {
			e.logger().Error("resume pipeline run failed", "project", id, "err", err)
		}
	}
	return p, StatusOK
}

// GetGraph returns the final knowledge graph, if synthesis has completed.
func (e *Engine) GetGraph(id string) (graphbuilder.Graph, Status) {
	var g graphbuilder.Graph
	if err := e.Store.ReadJSONArtifact(id, "graph.json", &g); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return graphbuilder.Graph{}, StatusNotFound
		}
		return graphbuilder.Graph{}, StatusInternalError
	}
	return g, StatusOK
}

// SubscribeEvents returns a live event stream for a project; the
// transport layer owns turning each eventbus.Event into the §6.6 wire
// shape.
func (e *Engine) SubscribeEvents(ctx context.Context, id string) (<-chan eventbus.Event, func()) {
	return e.Bus.Subscribe(ctx, id)
}

// ListSources returns the full source registry.
func (e *Engine) ListSources() ([]sources.Source, Status) {
	return e.Sources.List(), StatusOK
}

// GetSource returns one source by id.
func (e *Engine) GetSource(id string) (sources.Source, Status) {
	s, err := e.Sources.Get(id)
	if err != nil {
		return sources.Source{}, StatusNotFound
	}
	return s, StatusOK
}

// UpsertSource inserts or replaces a source entry.
func (e *Engine) UpsertSource(s sources.Source) Status {
	if err := e.Sources.Upsert(s); err != nil {
		return StatusBadRequest
	}
	return StatusOK
}

// DeleteSource removes a source entry.
func (e *Engine) DeleteSource(id string) Status {
	if err := e.Sources.Delete(id); err != nil {
		return StatusNotFound
	}
	return StatusOK
}

// MatchSources returns up to maxResults sources whose tags overlap topic.
func (e *Engine) MatchSources(topic string, maxResults int) ([]sourcematcher.Match, Status) {
	return e.Matcher.Match(topic, maxResults), StatusOK
}

// GetIndex returns every entry currently flagged for rebuild, a cheap
// proxy for "index health" transports can surface.
func (e *Engine) GetIndex() ([]researchindex.Entry, Status) {
	return e.Index.NeedsRebuild(), StatusOK
}

// SearchIndex ranks prior-project entries against query.
func (e *Engine) SearchIndex(query string, limit int) ([]researchindex.Entry, Status) {
	return e.Index.Search(query, limit), StatusOK
}

// RebuildIndex rescans every complete project, recomputing tags from its
// graph's node types and search terms from the topic, those types and the
// node labels, and records each back into
// the index (spec §4.7 Rebuild).
func (e *Engine) RebuildIndex() Status {
	projects, err := e.Store.List()
	if err != nil {
		return StatusInternalError
	}

	for _, p := range projects {
		if p.Status != store.StatusComplete {
			continue
		}
		var g graphbuilder.Graph
		if err := e.Store.ReadJSONArtifact(p.ID, "graph.json", &g); err != nil {
			continue
		}

		var labels, tags []string
		for _, n := range g.Nodes {
			labels = append(labels, n.Label)
			tags = append(tags, string(n.Type))
		}
		citations := 0
		for _, edge := range g.Edges {
			citations += len(edge.Citations)
		}

		entry := researchindex.Entry{
			ProjectID:   p.ID,
			Topic:       p.Topic,
			CompletedAt: p.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			Stats:       researchindex.Stats{Nodes: len(g.Nodes), Edges: len(g.Edges), Citations: citations},
			Tags:        dedupStrings(tags),
			SearchTerms: researchindex.RebuildTerms(p.Topic, tags, labels),
		}
		if err := e.Index.Record(entry); err != nil {
			return StatusInternalError
		}
	}
	return StatusOK
}
