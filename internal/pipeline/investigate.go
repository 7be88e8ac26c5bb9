package pipeline

import (
	"fmt"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/antigravity-dev/noetic/internal/investigation"
)

// runInvestigationPhase fans the evidence manifest out across
// InvestigationTreeWorkflow child executions, concurrency bounded by
// budget (spec §4.3: "parallel across evidence items; sequential within
// a single pathway chain"). A level output naming nextEvidenceTypes
// enqueues a follow-on child workflow against the registered pathway for
// that type, consuming the same budget, as slots free up.
//
// Every child is started with ParentClosePolicy TERMINATE: a pause
// signal cancels phaseCtx, and when this workflow execution subsequently
// completes (status=paused persisted, run returns) Temporal tears down
// every still-running child with it, so no orphan investigation survives
// a pause (spec §9 redesign flag).
func runInvestigationPhase(ctx, phaseCtx workflow.Context, cancelPhase workflow.CancelFunc, pauseCh workflow.ReceiveChannel, paused *bool, a *Activities, projectID string, manifest EvidenceManifest, budget int) ([]investigation.PathwayResult, error) {
	if budget <= 0 {
		budget = a.InvestigationBudgetMax
	}
	if budget <= 0 {
		budget = 1
	}

	publishOpts := workflow.ActivityOptions{StartToCloseTimeout: 30 * time.Second, RetryPolicy: &temporal.RetryPolicy{MaximumAttempts: 3}}
	_ = workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, publishOpts), a.PublishPhaseEventActivity, projectID, "investigating").Get(ctx, nil)

	resolveOpts := workflow.ActivityOptions{StartToCloseTimeout: 30 * time.Second, RetryPolicy: &temporal.RetryPolicy{MaximumAttempts: 2}}
	rCtx := workflow.WithActivityOptions(ctx, resolveOpts)
	var ia *investigation.Activities

	var results []investigation.PathwayResult
	var firstErr error
	spent := 0
	followUp := 0
	futures := make(map[workflow.Future]struct{})

	launch := func(evidence investigation.EvidenceItem) {
		spent++
		cwo := workflow.ChildWorkflowOptions{
			WorkflowID:        fmt.Sprintf("investigate-%s-%s", projectID, evidence.EvidenceID),
			ParentClosePolicy: enumspb.PARENT_CLOSE_POLICY_TERMINATE,
		}
		cctx := workflow.WithChildOptions(phaseCtx, cwo)
		fut := workflow.ExecuteChildWorkflow(cctx, investigation.InvestigationTreeWorkflow, investigation.TreeRequest{
			ProjectID: projectID,
			PathwayID: evidence.TriggeredPathway,
			Evidence:  evidence,
		})
		futures[fut] = struct{}{}
	}

	queue := append([]investigation.EvidenceItem{}, manifest.Items...)
	for len(queue) > 0 && spent < budget {
		launch(queue[0])
		queue = queue[1:]
	}

	for len(futures) > 0 && !*paused {
		sel := workflow.NewSelector(ctx)
		sel.AddReceive(pauseCh, func(c workflow.ReceiveChannel, more bool) {
			var v string
			c.Receive(ctx, &v)
			*paused = true
			cancelPhase()
		})
		for fut := range futures {
			fut := fut
			sel.AddFuture(fut, func(f workflow.Future) {
				delete(futures, fut)
				var outcome investigation.Outcome
				if err := f.Get(ctx, &outcome); err != nil {
					if firstErr == nil {
						firstErr = err
					}
					return
				}
				results = append(results, outcome.Result)
				if spent >= budget {
					return
				}
				for _, nextType := range dedupStrings(outcome.NextEvidenceTypes) {
					if spent >= budget {
						break
					}
					var resolved investigation.ResolveTriggerResult
					if err := workflow.ExecuteActivity(rCtx, ia.ResolveTriggerActivity, nextType).Get(ctx, &resolved); err != nil || !resolved.Found {
						continue
					}
					followUp++
					follow := investigation.EvidenceItem{
						EvidenceID:       fmt.Sprintf("%s-follow-%d", outcome.Result.EvidenceID, followUp),
						SubQuestionID:    outcome.Result.EvidenceID,
						Type:             nextType,
						Description:      fmt.Sprintf("cross-pathway follow-up from %s", outcome.Result.EvidenceID),
						TriggeredPathway: resolved.Pathway.ID,
					}
					launch(follow)
				}
			})
		}
		sel.Select(ctx)
	}

	if *paused {
		return nil, nil
	}
	if firstErr != nil && len(results) == 0 {
		return nil, firstErr
	}
	return results, nil
}

// dedupStrings drops empty and repeated entries, preserving first-seen
// order, used for next-evidence-type lists from both this phase and
// RebuildIndex's node-type tags.
func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
