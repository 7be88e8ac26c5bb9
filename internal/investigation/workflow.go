package investigation

import (
	"fmt"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/antigravity-dev/noetic/internal/pathway"
)

// TreeRequest starts an investigation tree root, one execution per
// (pathway, evidenceItem) (spec §4.5, redesign flag: ad-hoc
// callback-style concurrency replaced by a structured task tree with no
// orphan work surviving a pause).
//
// The continuation fields are set only when InvestigationTreeWorkflow
// spawns itself as a child workflow to carry a parallel=true level's
// remaining chain forward as an independent execution; callers starting a
// fresh root leave them zero.
type TreeRequest struct {
	ProjectID string
	PathwayID string
	Evidence  EvidenceItem

	Pathway      pathway.Pathway
	StartDepth   string
	ParentOutput map[string]any
	PriorLevels  []LevelOutput
	PriorNext    []string
	Visited      int
}

// nextBranch evaluates level's branches against signals in order,
// returning the first match's target depth (empty if it terminates the
// chain) and whether that match was a terminate branch.
func nextBranch(level pathway.Level, signals map[string]any) (depth string, terminate bool) {
	for _, b := range level.Branches {
		if !EvaluateBranch(b, signals) {
			continue
		}
		if b.Terminate {
			return "", true
		}
		return b.NextDepth, false
	}
	return "", false
}

// InvestigationTreeWorkflow runs p against evidence from depth 1 (or
// StartDepth, on a continuation) until a terminate branch, exhausted
// branches, a gap, or depth > 4 (spec §4.5 step 4). Each level dispatches
// via InvestigateLevelActivity; when a level with Parallel set routes to
// a further depth, the remainder of the chain continues as a child
// workflow rather than inline, so Temporal's own cancellation propagation
// tears it down cleanly on pause instead of leaving it an orphan
// goroutine.
func InvestigationTreeWorkflow(ctx workflow.Context, req TreeRequest) (Outcome, error) {
	var a *Activities

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	}
	actx := workflow.WithActivityOptions(ctx, ao)

	p := req.Pathway
	if p.ID == "" {
		if err := workflow.ExecuteActivity(actx, a.GetPathwayActivity, req.PathwayID).Get(ctx, &p); err != nil {
			return Outcome{}, fmt.Errorf("investigation tree: resolve pathway %s: %w", req.PathwayID, err)
		}
	}

	result := PathwayResult{PathwayID: p.ID, EvidenceID: req.Evidence.EvidenceID}
	result.Levels = append(result.Levels, req.PriorLevels...)
	nextEvidenceTypes := append([]string{}, req.PriorNext...)

	depth := req.StartDepth
	if depth == "" {
		depth = "1"
	}
	parentOutput := req.ParentOutput
	if parentOutput == nil {
		parentOutput = map[string]any{}
	}
	visited := req.Visited

	for depth != "" {
		visited++
		if visited > 4 {
			break
		}

		level, ok := p.LevelByDepth(depth)
		if !ok {
			break
		}

		var output LevelOutput
		lreq := LevelRequest{ProjectID: req.ProjectID, Pathway: p, Depth: depth, Evidence: req.Evidence, ParentOutput: parentOutput}
		if err := workflow.ExecuteActivity(actx, a.InvestigateLevelActivity, lreq).Get(ctx, &output); err != nil {
			return Outcome{}, fmt.Errorf("investigation tree: level %s: %w", depth, err)
		}

		result.Levels = append(result.Levels, output)
		nextEvidenceTypes = append(nextEvidenceTypes, output.NextEvidenceTypes...)

		if output.Retracted {
			return Outcome{Result: result, NextEvidenceTypes: nextEvidenceTypes, Retracted: true}, nil
		}
		if output.Gap {
			break
		}

		parentOutput = output.Findings

		nextDepth, terminate := nextBranch(level, output.BranchSignals)
		if terminate {
			return Outcome{Result: result, NextEvidenceTypes: nextEvidenceTypes}, nil
		}
		if nextDepth == "" {
			break
		}

		if level.Parallel {
			child := TreeRequest{
				ProjectID:    req.ProjectID,
				PathwayID:    p.ID,
				Evidence:     req.Evidence,
				Pathway:      p,
				StartDepth:   nextDepth,
				ParentOutput: parentOutput,
				PriorLevels:  result.Levels,
				PriorNext:    nextEvidenceTypes,
				Visited:      visited,
			}
			cwo := workflow.ChildWorkflowOptions{
				WorkflowID:        fmt.Sprintf("investigate-%s-%s-d%s", req.ProjectID, req.Evidence.EvidenceID, nextDepth),
				ParentClosePolicy: enumspb.PARENT_CLOSE_POLICY_TERMINATE,
			}
			cctx := workflow.WithChildOptions(ctx, cwo)
			var childOutcome Outcome
			if err := workflow.ExecuteChildWorkflow(cctx, InvestigationTreeWorkflow, child).Get(ctx, &childOutcome); err != nil {
				return Outcome{}, fmt.Errorf("investigation tree: child at depth %s: %w", nextDepth, err)
			}
			return childOutcome, nil
		}

		depth = nextDepth
	}

	return Outcome{Result: result, NextEvidenceTypes: nextEvidenceTypes}, nil
}
