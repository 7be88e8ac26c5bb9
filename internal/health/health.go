// Package health periodically sweeps the ledger for dispatches that have
// outrun their timeout without a Strategos worker reporting completion,
// generalizing the teacher's PID/tmux liveness sweep to "ledger row not
// closed" liveness against the external worker backend.
package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/antigravity-dev/noetic/internal/ledger"
	"github.com/antigravity-dev/noetic/internal/strategos"
)

// Action describes what the sweep did with one stuck dispatch.
type Action struct {
	ProjectID string
	WorkerID  string
	Outcome   string // worker-still-running, worker-dead, delete-failed
}

// Monitor periodically checks for stuck dispatches and reconciles their
// ledger rows against Strategos worker state.
type Monitor struct {
	ledger   *ledger.Ledger
	client   *strategos.Client
	logger   *slog.Logger
	timeout  time.Duration
	grace    time.Duration
	interval time.Duration
}

// New constructs a Monitor. grace is extra slack beyond timeout before a
// running dispatch row is treated as potentially stuck.
func New(l *ledger.Ledger, client *strategos.Client, logger *slog.Logger, timeout, grace, interval time.Duration) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{ledger: l, client: client, logger: logger, timeout: timeout, grace: grace, interval: interval}
}

// Start runs the sweep on Monitor's configured interval until ctx is
// cancelled.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep checks every running dispatch row older than timeout+grace
// against the Strategos backend and reconciles its state.
func (m *Monitor) Sweep(ctx context.Context) []Action {
	cutoff := time.Now().Add(-(m.timeout + m.grace))
	stuck, err := m.ledger.StuckDispatches(cutoff)
	if err != nil {
		m.logger.Error("health: failed to list stuck dispatches", "error", err)
		return nil
	}

	var actions []Action
	for _, d := range stuck {
		worker, err := m.client.Status(ctx, d.WorkerID)
		if err != nil {
			m.logger.Warn("health: worker status check failed", "project_id", d.ProjectID, "worker_id", d.WorkerID, "error", err)
			continue
		}

		switch worker.State {
		case strategos.WorkerRunning:
			m.logger.Warn("health: dispatch past timeout but worker still running", "project_id", d.ProjectID, "worker_id", d.WorkerID)
			actions = append(actions, Action{ProjectID: d.ProjectID, WorkerID: d.WorkerID, Outcome: "worker-still-running"})
		default:
			m.logger.Warn("health: dispatch past timeout, worker no longer running", "project_id", d.ProjectID, "worker_id", d.WorkerID, "state", worker.State)
			exitCode := 0
			if worker.State == strategos.WorkerFailed {
				exitCode = worker.ExitCode
			}
			if err := m.ledger.RecordDispatchEnd(d.ID, "failed", exitCode, d.InputTokens, d.OutputTokens, d.CostUSD); err != nil {
				m.logger.Error("health: failed to close stuck ledger row", "project_id", d.ProjectID, "worker_id", d.WorkerID, "error", err)
				actions = append(actions, Action{ProjectID: d.ProjectID, WorkerID: d.WorkerID, Outcome: "delete-failed"})
				continue
			}
			actions = append(actions, Action{ProjectID: d.ProjectID, WorkerID: d.WorkerID, Outcome: "worker-dead"})
		}
	}
	return actions
}
