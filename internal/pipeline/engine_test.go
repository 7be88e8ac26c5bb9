package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/antigravity-dev/noetic/internal/config"
	"github.com/antigravity-dev/noetic/internal/store"
)

var errSignalFailed = errors.New("signal failed")

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := &config.Config{Pipeline: config.Pipeline{InvestigationBudgetMax: 50}}
	return &Engine{
		Store: store.New(t.TempDir()),
		Cfg:   cfg,
	}
}

func TestCreateProjectRejectsEmptyTopic(t *testing.T) {
	e := newTestEngine(t)

	_, status := e.CreateProject(context.Background(), "", store.Config{})

	if status != StatusBadRequest {
		t.Fatalf("status = %q, want %q", status, StatusBadRequest)
	}
}

func TestCreateProjectClampsInvestigationBudget(t *testing.T) {
	e := newTestEngine(t)

	p, status := e.CreateProject(context.Background(), "does caffeine cause anxiety", store.Config{InvestigationBudget: 9999})

	if status != StatusCreated {
		t.Fatalf("status = %q, want %q", status, StatusCreated)
	}
	if p.Config.InvestigationBudget != 50 {
		t.Fatalf("investigation budget = %d, want clamped to 50", p.Config.InvestigationBudget)
	}
	if p.Status != store.StatusPending {
		t.Fatalf("status = %q, want %q", p.Status, store.StatusPending)
	}
}

func TestGetProjectNotFound(t *testing.T) {
	e := newTestEngine(t)

	_, status := e.GetProject("does-not-exist")

	if status != StatusNotFound {
		t.Fatalf("status = %q, want %q", status, StatusNotFound)
	}
}

func TestPauseAndUnpauseProjectRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	p, _ := e.CreateProject(context.Background(), "topic", store.Config{})

	if status := e.PauseProject(context.Background(), p.ID); status != StatusOK {
		t.Fatalf("PauseProject status = %q, want %q", status, StatusOK)
	}
	got, _ := e.GetProject(p.ID)
	if !got.Paused {
		t.Fatal("expected project to be paused")
	}

	if status := e.UnpauseProject(p.ID); status != StatusOK {
		t.Fatalf("UnpauseProject status = %q, want %q", status, StatusOK)
	}
	got, _ = e.GetProject(p.ID)
	if got.Paused {
		t.Fatal("expected project to be unpaused")
	}
}

func TestPauseProjectNotFound(t *testing.T) {
	e := newTestEngine(t)

	if status := e.PauseProject(context.Background(), "does-not-exist"); status != StatusNotFound {
		t.Fatalf("status = %q, want %q", status, StatusNotFound)
	}
}

func TestPauseProjectSignalsRunningWorkflow(t *testing.T) {
	e := newTestEngine(t)
	p, _ := e.CreateProject(context.Background(), "topic", store.Config{})

	var signaled string
	e.Signal = func(ctx context.Context, projectID string) error {
		signaled = projectID
		return nil
	}

	if status := e.PauseProject(context.Background(), p.ID); status != StatusOK {
		t.Fatalf("status = %q, want %q", status, StatusOK)
	}
	if signaled != p.ID {
		t.Fatalf("Signal called with %q, want %q", signaled, p.ID)
	}
}

func TestPauseProjectSignalErrorIsInternalError(t *testing.T) {
	e := newTestEngine(t)
	p, _ := e.CreateProject(context.Background(), "topic", store.Config{})

	e.Signal = func(ctx context.Context, projectID string) error {
		return errSignalFailed
	}

	if status := e.PauseProject(context.Background(), p.ID); status != StatusInternalError {
		t.Fatalf("status = %q, want %q", status, StatusInternalError)
	}
}

func TestDeleteProjectRemovesIt(t *testing.T) {
	e := newTestEngine(t)
	p, _ := e.CreateProject(context.Background(), "topic", store.Config{})

	if status := e.DeleteProject(p.ID); status != StatusOK {
		t.Fatalf("DeleteProject status = %q, want %q", status, StatusOK)
	}
	if _, status := e.GetProject(p.ID); status != StatusNotFound {
		t.Fatalf("GetProject after delete status = %q, want %q", status, StatusNotFound)
	}
}
