package investigation

import (
	"context"
	"fmt"
	"time"

	"github.com/antigravity-dev/noetic/internal/cost"
	"github.com/antigravity-dev/noetic/internal/jsonx"
	"github.com/antigravity-dev/noetic/internal/ledger"
	"github.com/antigravity-dev/noetic/internal/pathway"
	"github.com/antigravity-dev/noetic/internal/strategos"
)

// Dispatcher is the subset of strategos.Client the tree needs, narrowed
// to an interface so the level-execution loop is testable without a
// live worker backend.
type Dispatcher interface {
	Spawn(ctx context.Context, req strategos.SpawnRequest) (string, error)
	WaitForDone(ctx context.Context, id string, pollInterval time.Duration) (strategos.Worker, error)
	ReadOutput(ctx context.Context, id string) (string, error)
}

// Executor runs a single (pathway, evidenceItem) investigation, the
// pure sequencing core behind InvestigationTreeWorkflow (spec §4.5,
// redesign flag: "task tree... structured join").
type Executor struct {
	Dispatcher   Dispatcher
	Registry     *pathway.Registry
	Ledger       *ledger.Ledger // optional; nil disables ledger recording
	Model        string
	PollInterval time.Duration
	PerLevelTimeout time.Duration

	// InputCostPerMille/OutputCostPerMille feed the ledger's advisory
	// cost column (config.Cost); zero disables cost computation without
	// disabling dispatch-start/end recording.
	InputCostPerMille  float64
	OutputCostPerMille float64
}

// Outcome is what Run and InvestigationTreeWorkflow hand back to the
// caller for cross-pathway spawning and graph/adjudication input; the
// caller owns scheduling sibling pathway executions for NextEvidenceTypes
// (runInvestigationPhase does so; AdjudicateActivity, Run's caller, does
// not).
type Outcome struct {
	Result            PathwayResult
	NextEvidenceTypes []string
	Retracted         bool
}

// Run executes p against evidence from depth 1 until a TERMINATE branch,
// exhausted branches, a gap, or depth > 4. projectID is used only for
// ledger attribution.
func (e *Executor) Run(ctx context.Context, projectID string, p pathway.Pathway, evidence EvidenceItem) (Outcome, error) {
	result := PathwayResult{PathwayID: p.ID, EvidenceID: evidence.EvidenceID}
	var nextEvidenceTypes []string

	depth := "1"
	visited := 0
	parentOutput := map[string]any{}

	for depth != "" {
		visited++
		if visited > 4 {
			break
		}

		level, ok := p.LevelByDepth(depth)
		if !ok {
			break
		}

		output, err := e.runLevel(ctx, projectID, p, level, evidence, parentOutput)
		if err != nil {
			return Outcome{}, fmt.Errorf("investigation: level %s: %w", depth, err)
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

		nextDepth := ""
		for _, b := range level.Branches {
			if !EvaluateBranch(b, output.BranchSignals) {
				continue
			}
			if b.Terminate {
				return Outcome{Result: result, NextEvidenceTypes: nextEvidenceTypes}, nil
			}
			nextDepth = b.NextDepth
			break
		}
		depth = nextDepth
	}

	return Outcome{Result: result, NextEvidenceTypes: nextEvidenceTypes}, nil
}

// runLevel dispatches one worker for level, retrying once on malformed
// JSON output before marking the level a gap (spec §4.5 step 2).
func (e *Executor) runLevel(ctx context.Context, projectID string, p pathway.Pathway, level pathway.Level, evidence EvidenceItem, parentOutput map[string]any) (LevelOutput, error) {
	evidenceScope := map[string]any{
		"type":        evidence.Type,
		"description": evidence.Description,
	}

	task := pathway.BuildTask(level, evidenceScope, parentOutput)

	output, err := e.dispatchAndExtract(ctx, projectID, p, level, task.Purpose+"\n\n"+task.KeyTasks+"\n\n"+task.EndState)
	if err == nil {
		return output, nil
	}

	corrective := fmt.Sprintf("%s\n\n%s\n\n%s\n\nYour previous response could not be parsed as valid JSON (%v). Respond again with ONLY a single valid JSON object matching the required fields.", task.Purpose, task.KeyTasks, task.EndState, err)
	output, err = e.dispatchAndExtract(ctx, projectID, p, level, corrective)
	if err == nil {
		return output, nil
	}

	if e.Ledger != nil {
		_ = e.Ledger.RecordGap(projectID, p.ID, level.Depth, err.Error())
	}
	return LevelOutput{Depth: level.Depth, Gap: true, GapReason: err.Error()}, nil
}

func (e *Executor) dispatchAndExtract(ctx context.Context, projectID string, p pathway.Pathway, level pathway.Level, prompt string) (LevelOutput, error) {
	id, err := e.Dispatcher.Spawn(ctx, strategos.SpawnRequest{
		Pathway: p.ID,
		Prompt:  prompt,
		Model:   e.Model,
		Labels:  map[string]string{"depth": level.Depth, "workerTemplate": string(level.WorkerTemplate)},
	})
	if err != nil {
		return LevelOutput{}, fmt.Errorf("spawn: %w", err)
	}

	var dispatchRow int64
	haveRow := false
	if e.Ledger != nil {
		if row, rerr := e.Ledger.RecordDispatchStart(projectID, id, p.ID, level.Depth, e.Model); rerr == nil {
			dispatchRow = row
			haveRow = true
		}
	}

	levelCtx := ctx
	var cancel context.CancelFunc
	if e.PerLevelTimeout > 0 {
		levelCtx, cancel = context.WithTimeout(ctx, e.PerLevelTimeout)
		defer cancel()
	}

	worker, err := e.Dispatcher.WaitForDone(levelCtx, id, e.PollInterval)
	if err != nil {
		if haveRow {
			_ = e.Ledger.RecordDispatchEnd(dispatchRow, "timeout", 0, 0, 0, 0)
		}
		return LevelOutput{Depth: level.Depth, Gap: true, GapReason: err.Error()}, nil
	}

	raw, err := e.Dispatcher.ReadOutput(ctx, id)
	if err != nil {
		if haveRow {
			_ = e.Ledger.RecordDispatchEnd(dispatchRow, "read-error", worker.ExitCode, 0, 0, 0)
		}
		return LevelOutput{}, fmt.Errorf("read output: %w", err)
	}

	if haveRow {
		usage := cost.ExtractUsage(raw, prompt)
		costUSD := cost.USD(usage, e.InputCostPerMille, e.OutputCostPerMille)
		status := "completed"
		if worker.State == strategos.WorkerFailed {
			status = "failed"
		}
		_ = e.Ledger.RecordDispatchEnd(dispatchRow, status, worker.ExitCode, usage.Input, usage.Output, costUSD)
	}

	var output LevelOutput
	if err := jsonx.Extract(raw, &output); err != nil {
		return LevelOutput{}, err
	}
	output.Depth = level.Depth

	if err := validateRequiredOutputs(output, level.RequiredOutputs); err != nil {
		return LevelOutput{}, err
	}
	return output, nil
}

func validateRequiredOutputs(output LevelOutput, required []pathway.RequiredOutputField) error {
	for _, f := range required {
		if !f.Required {
			continue
		}
		switch f.Name {
		case "evidenceFound", "sourceRating", "infoRating", "findings", "branchSignals":
			continue // always present on LevelOutput, possibly zero-valued
		}
		if _, ok := output.Findings[f.Name]; !ok {
			return fmt.Errorf("missing required output field %q", f.Name)
		}
	}
	return nil
}
