package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/antigravity-dev/noetic/internal/graphbuilder"
	"github.com/antigravity-dev/noetic/internal/investigation"
	"github.com/antigravity-dev/noetic/internal/store"
)

// PauseSignalName is the signal a paused project's workflow waits on.
// Engine.PauseProject flips the on-disk flag and delivers this signal
// (via Engine.Signal) to the running workflow execution, which is what
// actually interrupts it promptly rather than at the next natural
// checkpoint.
const PauseSignalName = "pause"

// Request starts or resumes a project's pipeline run.
type Request struct {
	ProjectID string
	Topic     string
	Budget    int
	// FromPhase, when set, skips every phase before it and re-reads that
	// phase's inputs from the project store rather than recomputing them
	// (spec §4.3 Resume).
	FromPhase string
}

// phaseOrder fixes the state machine's linear order; FromPhase indexes
// into it to decide which phases to skip on resume.
var phaseOrder = []store.Status{
	store.StatusPlanning,
	store.StatusResearching,
	store.StatusInvestigating,
	store.StatusAdjudicating,
	store.StatusSynthesizing,
}

func phaseIndex(phase string) int {
	for i, p := range phaseOrder {
		if string(p) == phase {
			return i
		}
	}
	return 0
}

// ResearchPipelineWorkflow drives a project through plan -> classify ->
// investigate -> adjudicate -> synthesize (spec §4.3). Every phase
// reacts to the pause signal channel by canceling phaseCtx the instant a
// signal arrives rather than waiting for the phase to finish: plan,
// classify, adjudicate, and synthesize do this by racing their single
// activity future against pauseCh (raceWithPause); investigate, which
// fans out into many child workflows rather than one activity, watches
// pauseCh itself inside runInvestigationPhase. Either way, a received
// signal persists status=paused with the interrupted phase as the
// checkpoint. A later Resume starts a fresh workflow execution with
// FromPhase set to that checkpoint.
func ResearchPipelineWorkflow(ctx workflow.Context, req Request) error {
	var a *Activities

	recordOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	}

	phaseCtx, cancelPhase := workflow.WithCancel(ctx)
	defer cancelPhase()

	pauseCh := workflow.GetSignalChannel(ctx, PauseSignalName)
	paused := false

	persistPause := func(phase string) error {
		pauseCtx := workflow.WithActivityOptions(ctx, recordOpts)
		return workflow.ExecuteActivity(pauseCtx, a.MarkPausedActivity, req.ProjectID, phase).Get(ctx, nil)
	}

	startAt := phaseIndex(req.FromPhase)

	planOpts := workflow.ActivityOptions{StartToCloseTimeout: 5 * time.Minute, RetryPolicy: &temporal.RetryPolicy{MaximumAttempts: 2}}
	classifyOpts := workflow.ActivityOptions{StartToCloseTimeout: 10 * time.Minute, RetryPolicy: &temporal.RetryPolicy{MaximumAttempts: 2}}
	adjudicateOpts := workflow.ActivityOptions{StartToCloseTimeout: 10 * time.Minute, RetryPolicy: &temporal.RetryPolicy{MaximumAttempts: 1}}
	synthesizeOpts := workflow.ActivityOptions{StartToCloseTimeout: 10 * time.Minute, RetryPolicy: &temporal.RetryPolicy{MaximumAttempts: 1}}

	var plan Plan
	var manifest EvidenceManifest
	var results []investigation.PathwayResult
	var adjudicated []investigation.AdjudicatedEvidence
	var graph graphbuilder.Graph

	// ===== PLAN =====
	if startAt <= phaseIndex(string(store.StatusPlanning)) {
		pCtx := workflow.WithActivityOptions(phaseCtx, planOpts)
		future := workflow.ExecuteActivity(pCtx, a.PlanActivity, req.ProjectID, req.Topic)
		if err := raceWithPause(ctx, cancelPhase, pauseCh, &paused, future, func() error { return future.Get(ctx, &plan) }); err != nil {
			return a.fail(ctx, req.ProjectID, "planning", err)
		}
		if paused {
			return persistPause(string(store.StatusPlanning))
		}
	} else {
		if err := a.Store.ReadJSONArtifact(req.ProjectID, "plan.json", &plan); err != nil {
			return a.fail(ctx, req.ProjectID, "planning", err)
		}
	}

	// ===== CLASSIFY (researching) =====
	if startAt <= phaseIndex(string(store.StatusResearching)) {
		cCtx := workflow.WithActivityOptions(phaseCtx, classifyOpts)
		future := workflow.ExecuteActivity(cCtx, a.ClassifyActivity, req.ProjectID, req.Topic, plan)
		if err := raceWithPause(ctx, cancelPhase, pauseCh, &paused, future, func() error { return future.Get(ctx, &manifest) }); err != nil {
			return a.fail(ctx, req.ProjectID, "researching", err)
		}
		if paused {
			return persistPause(string(store.StatusResearching))
		}
	} else {
		if err := a.Store.ReadJSONArtifact(req.ProjectID, "evidence/manifest-1.json", &manifest); err != nil {
			return a.fail(ctx, req.ProjectID, "researching", err)
		}
	}

	// ===== INVESTIGATE =====
	// Unlike the other phases, investigation is not a single Activity:
	// runInvestigationPhase orchestrates a child workflow per evidence
	// item (and per cross-pathway follow-up) directly, so it already
	// reacts to pauseCh itself instead of being raced against it.
	if startAt <= phaseIndex(string(store.StatusInvestigating)) {
		var err error
		results, err = runInvestigationPhase(ctx, phaseCtx, cancelPhase, pauseCh, &paused, a, req.ProjectID, manifest, req.Budget)
		if err != nil {
			return a.fail(ctx, req.ProjectID, "investigating", err)
		}
		if paused {
			return persistPause(string(store.StatusInvestigating))
		}
		if err := a.Store.WriteJSONArtifact(req.ProjectID, investigationResultsArtifact, results); err != nil {
			return a.fail(ctx, req.ProjectID, "investigating", err)
		}
	} else {
		if err := a.Store.ReadJSONArtifact(req.ProjectID, investigationResultsArtifact, &results); err != nil {
			return a.fail(ctx, req.ProjectID, "investigating", err)
		}
	}

	// ===== ADJUDICATE =====
	if startAt <= phaseIndex(string(store.StatusAdjudicating)) {
		adCtx := workflow.WithActivityOptions(phaseCtx, adjudicateOpts)
		future := workflow.ExecuteActivity(adCtx, a.AdjudicateActivity, req.ProjectID, plan, manifest, results)
		if err := raceWithPause(ctx, cancelPhase, pauseCh, &paused, future, func() error { return future.Get(ctx, &adjudicated) }); err != nil {
			return a.fail(ctx, req.ProjectID, "adjudicating", err)
		}
		if paused {
			return persistPause(string(store.StatusAdjudicating))
		}
	} else {
		if err := a.Store.ReadJSONArtifact(req.ProjectID, adjudicatedArtifact, &adjudicated); err != nil {
			return a.fail(ctx, req.ProjectID, "adjudicating", err)
		}
	}

	// ===== SYNTHESIZE =====
	// Synthesis is the last phase before completion; a pause arriving here
	// still cancels it, but resuming re-enters at synthesizing rather than
	// completing a phase there's no later checkpoint for.
	synCtx := workflow.WithActivityOptions(phaseCtx, synthesizeOpts)
	future := workflow.ExecuteActivity(synCtx, a.SynthesizeActivity, req.ProjectID, req.Topic, adjudicated)
	if err := raceWithPause(ctx, cancelPhase, pauseCh, &paused, future, func() error { return future.Get(ctx, &graph) }); err != nil {
		return a.fail(ctx, req.ProjectID, "synthesizing", err)
	}
	if paused {
		return persistPause(string(store.StatusSynthesizing))
	}

	doneCtx := workflow.WithActivityOptions(ctx, recordOpts)
	return workflow.ExecuteActivity(doneCtx, a.CompleteActivity, req.ProjectID).Get(ctx, nil)
}

// raceWithPause runs future to completion unless a pause signal arrives
// first, in which case it cancels the phase's derived context via
// cancelPhase, sets *paused, and returns nil without waiting for the
// (now-canceled) future. get decodes future's result into the caller's
// output variable; it is only invoked once future resolves first.
func raceWithPause(ctx workflow.Context, cancelPhase workflow.CancelFunc, pauseCh workflow.ReceiveChannel, paused *bool, future workflow.Future, get func() error) error {
	var activityErr error
	resolved := false

	sel := workflow.NewSelector(ctx)
	sel.AddFuture(future, func(f workflow.Future) {
		activityErr = get()
		resolved = true
	})
	sel.AddReceive(pauseCh, func(c workflow.ReceiveChannel, more bool) {
		var v string
		c.Receive(ctx, &v)
		*paused = true
		cancelPhase()
	})

	for !resolved && !*paused {
		sel.Select(ctx)
	}
	return activityErr
}

// fail persists status=error with the failing phase's message, then
// returns the original error so the workflow execution is recorded as
// failed too.
func (a *Activities) fail(ctx workflow.Context, projectID, phase string, cause error) error {
	opts := workflow.ActivityOptions{StartToCloseTimeout: 30 * time.Second, RetryPolicy: &temporal.RetryPolicy{MaximumAttempts: 3}}
	errCtx := workflow.WithActivityOptions(ctx, opts)
	_ = workflow.ExecuteActivity(errCtx, a.MarkErrorActivity, projectID, fmt.Sprintf("%s: %v", phase, cause)).Get(ctx, nil)
	return cause
}

// checkpointArtifact names the small file MarkPausedActivity leaves behind
// recording which phase to resume at; Resume takes fromPhase explicitly
// from its caller, so this is how the caller learns what to pass when it
// wasn't tracking the phase itself.
const checkpointArtifact = "checkpoint.json"

// investigationResultsArtifact and adjudicatedArtifact hold the
// aggregate output of the investigate/adjudicate phases (alongside the
// per-level and per-sub-question files each phase also writes), so a
// Resume starting at a later phase can re-read them the same way PLAN
// and CLASSIFY already do for plan.json/manifest-1.json.
const investigationResultsArtifact = "evidence/results.json"
const adjudicatedArtifact = "adjudication/_all.json"

type checkpointRecord struct {
	Phase string `json:"phase"`
}

// MarkPausedActivity persists status=paused and records the checkpoint
// phase so a later Resume (spec §4.3) knows where to restart even if the
// caller doesn't supply fromPhase explicitly.
func (a *Activities) MarkPausedActivity(ctx context.Context, projectID, phase string) error {
	if _, err := a.Store.UpdateStatus(projectID, store.StatusPaused, ""); err != nil {
		return err
	}
	return a.Store.WriteJSONArtifact(projectID, checkpointArtifact, checkpointRecord{Phase: phase})
}

// MarkErrorActivity persists status=error with the failure note.
func (a *Activities) MarkErrorActivity(ctx context.Context, projectID, note string) error {
	_, err := a.Store.UpdateStatus(projectID, store.StatusError, note)
	return err
}

// CompleteActivity persists status=complete.
func (a *Activities) CompleteActivity(ctx context.Context, projectID string) error {
	_, err := a.Store.UpdateStatus(projectID, store.StatusComplete, "")
	return err
}
