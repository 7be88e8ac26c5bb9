package investigation

import (
	"context"
	"time"

	"github.com/antigravity-dev/noetic/internal/ledger"
	"github.com/antigravity-dev/noetic/internal/pathway"
)

// Activities wraps the per-level dispatch loop as Temporal activities so
// InvestigationTreeWorkflow can drive it with workflow.ExecuteActivity
// instead of calling Executor.Run from within activity code. It carries
// the same dependencies as Executor, since an activity call is the unit
// InvestigationTreeWorkflow schedules per level rather than per pathway.
type Activities struct {
	Dispatcher      Dispatcher
	Registry        *pathway.Registry
	Ledger          *ledger.Ledger
	Model           string
	PollInterval    time.Duration
	PerLevelTimeout time.Duration

	InputCostPerMille  float64
	OutputCostPerMille float64
}

func (a *Activities) executor() *Executor {
	return &Executor{
		Dispatcher:         a.Dispatcher,
		Registry:           a.Registry,
		Ledger:             a.Ledger,
		Model:              a.Model,
		PollInterval:       a.PollInterval,
		PerLevelTimeout:    a.PerLevelTimeout,
		InputCostPerMille:  a.InputCostPerMille,
		OutputCostPerMille: a.OutputCostPerMille,
	}
}

// GetPathwayActivity resolves a pathway by id against the registry. It is
// an activity, rather than a direct in-workflow registry read, so replays
// stay deterministic even if a worker restarts against a reloaded registry.
func (a *Activities) GetPathwayActivity(ctx context.Context, pathwayID string) (pathway.Pathway, error) {
	return a.Registry.Get(pathwayID)
}

// ResolveTriggerResult is ResolveTriggerActivity's output: an activity
// function may only return a single result plus an error, so the
// found-or-not outcome travels alongside the pathway rather than as a
// second return value.
type ResolveTriggerResult struct {
	Pathway pathway.Pathway
	Found   bool
}

// ResolveTriggerActivity finds the first pathway registered for
// evidenceType, the same first-candidate rule cross-pathway follow-ups
// have always used. Found is false if nothing is registered for the
// type, in which case the caller drops the follow-up rather than
// failing the workflow.
func (a *Activities) ResolveTriggerActivity(ctx context.Context, evidenceType string) (ResolveTriggerResult, error) {
	candidates := a.Registry.ForTrigger(evidenceType)
	if len(candidates) == 0 {
		return ResolveTriggerResult{}, nil
	}
	return ResolveTriggerResult{Pathway: candidates[0], Found: true}, nil
}

// LevelRequest is one level dispatch, the unit InvestigationTreeWorkflow
// schedules via workflow.ExecuteActivity.
type LevelRequest struct {
	ProjectID    string
	Pathway      pathway.Pathway
	Depth        string
	Evidence     EvidenceItem
	ParentOutput map[string]any
}

// InvestigateLevelActivity dispatches one pathway level, retrying once on
// malformed worker output before recording a gap (spec §4.5 step 2) —
// the same behavior Executor.runLevel implements, invoked here as an
// activity instead of a plain method call so InvestigationTreeWorkflow
// gets per-level retry/timeout policy and replay safety from Temporal.
func (a *Activities) InvestigateLevelActivity(ctx context.Context, req LevelRequest) (LevelOutput, error) {
	level, ok := req.Pathway.LevelByDepth(req.Depth)
	if !ok {
		return LevelOutput{Depth: req.Depth, Gap: true, GapReason: "no such level depth"}, nil
	}
	return a.executor().runLevel(ctx, req.ProjectID, req.Pathway, level, req.Evidence, req.ParentOutput)
}
