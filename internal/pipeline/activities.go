package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/antigravity-dev/noetic/internal/eventbus"
	"github.com/antigravity-dev/noetic/internal/graphbuilder"
	"github.com/antigravity-dev/noetic/internal/investigation"
	"github.com/antigravity-dev/noetic/internal/jsonx"
	"github.com/antigravity-dev/noetic/internal/ledger"
	"github.com/antigravity-dev/noetic/internal/noeticerr"
	"github.com/antigravity-dev/noetic/internal/pathway"
	"github.com/antigravity-dev/noetic/internal/researchindex"
	"github.com/antigravity-dev/noetic/internal/store"
	"github.com/antigravity-dev/noetic/internal/strategos"
)

// Activities holds the dependencies every phase activity dispatches
// against: the narrowed worker Dispatcher (satisfied by
// *strategos.Client), the read-only pathway registry, the project
// store, the ledger, the event bus, and the bounded resource envelope
// from config.Pipeline.
type Activities struct {
	Dispatcher   investigation.Dispatcher
	Pathways     *pathway.Registry
	Store        *store.Store
	Ledger       *ledger.Ledger
	Bus          *eventbus.Bus
	Index        *researchindex.Index
	Logger       *slog.Logger

	Model                  string
	PollInterval           time.Duration
	PerWorkerTimeout       time.Duration
	ClassifyConcurrency    int
	InvestigationBudgetMax int
	PriorResearchMaxNodes  int
	InputCostPerMille      float64
	OutputCostPerMille     float64
}

// executor builds an investigation.Executor wired with this Activities'
// dispatch and cost-tracking configuration.
func (a *Activities) executor() *investigation.Executor {
	return &investigation.Executor{
		Dispatcher:         a.Dispatcher,
		Registry:           a.Pathways,
		Ledger:             a.Ledger,
		Model:              a.Model,
		PollInterval:       a.PollInterval,
		PerLevelTimeout:    a.PerWorkerTimeout,
		InputCostPerMille:  a.InputCostPerMille,
		OutputCostPerMille: a.OutputCostPerMille,
	}
}

func (a *Activities) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func (a *Activities) publish(projectID string, typ eventbus.EventType, detail map[string]any) {
	if a.Bus == nil {
		return
	}
	a.Bus.Publish(eventbus.Event{ProjectID: projectID, Type: typ, At: time.Now().UTC(), Detail: detail})
}

// PublishPhaseEventActivity publishes a phase-started event. It exists as
// its own activity because the investigate phase, unlike the others, is
// no longer a single Activity function — it is orchestrated directly
// from the workflow via child workflows — so the bus publish (a side
// effect) needs its own activity boundary to stay replay-safe.
func (a *Activities) PublishPhaseEventActivity(ctx context.Context, projectID, phase string) error {
	a.publish(projectID, eventbus.EventPhaseStarted, map[string]any{"phase": phase})
	return nil
}

// investigationActivities builds the investigation package's own
// Activities wrapper from this Activities' dispatch and cost-tracking
// configuration, for workflow code that schedules per-level and
// pathway-resolution activities directly (runInvestigationPhase).
func (a *Activities) investigationActivities() *investigation.Activities {
	return &investigation.Activities{
		Dispatcher:         a.Dispatcher,
		Registry:           a.Pathways,
		Ledger:             a.Ledger,
		Model:              a.Model,
		PollInterval:       a.PollInterval,
		PerLevelTimeout:    a.PerWorkerTimeout,
		InputCostPerMille:  a.InputCostPerMille,
		OutputCostPerMille: a.OutputCostPerMille,
	}
}

// dispatchOne spawns a single worker, waits for it under PerWorkerTimeout,
// and returns its raw output. It is the single-shot counterpart to
// investigation.Executor's per-level dispatch loop, used by phases that
// need exactly one worker's structured output (plan, classify batch,
// synthesize).
func (a *Activities) dispatchOne(ctx context.Context, pathwayLabel, prompt string) (string, error) {
	id, err := a.Dispatcher.Spawn(ctx, strategos.SpawnRequest{
		Pathway: pathwayLabel,
		Prompt:  prompt,
		Model:   a.Model,
	})
	if err != nil {
		return "", fmt.Errorf("spawn %s: %w", pathwayLabel, err)
	}

	waitCtx := ctx
	var cancel context.CancelFunc
	if a.PerWorkerTimeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, a.PerWorkerTimeout)
		defer cancel()
	}

	if _, err := a.Dispatcher.WaitForDone(waitCtx, id, a.PollInterval); err != nil {
		return "", err
	}
	return a.Dispatcher.ReadOutput(ctx, id)
}

// priorResearchBlock implements spec §4.3's prior-research enrichment: a
// PRIOR RESEARCH block naming up to PriorResearchMaxNodes
// recommendation/product/solution nodes from each of the best-matching
// prior projects, always including the source projectId so workers may cite it.
func (a *Activities) priorResearchBlock(topic string) string {
	if a.Index == nil {
		return ""
	}
	entries := a.Index.Search(topic, 3)
	if len(entries) == 0 {
		return ""
	}

	limit := a.PriorResearchMaxNodes
	if limit <= 0 {
		limit = 5
	}

	var b strings.Builder
	b.WriteString("PRIOR RESEARCH:\n")
	for _, e := range entries {
		raw, err := a.Store.GetGraph(e.ProjectID)
		if err != nil {
			continue
		}
		var g graphbuilder.Graph
		if err := json.Unmarshal(raw, &g); err != nil {
			continue
		}
		cited := 0
		for _, n := range g.Nodes {
			if n.Type != graphbuilder.NodeRecommendation && n.Type != graphbuilder.NodeProduct && n.Type != graphbuilder.NodeSolution {
				continue
			}
			if cited >= limit {
				break
			}
			fmt.Fprintf(&b, "- [from project %s] %s: %s\n", e.ProjectID, n.Label, n.Summary)
			cited++
		}
	}
	return b.String()
}

// PlanActivity dispatches the single plan worker and parses its structured
// sub-question list (spec §4.3 phase "plan").
func (a *Activities) PlanActivity(ctx context.Context, projectID, topic string) (Plan, error) {
	a.publish(projectID, eventbus.EventPhaseStarted, map[string]any{"phase": "planning"})

	raw, err := a.dispatchOne(ctx, "plan", planPrompt(topic, a.priorResearchBlock(topic)))
	if err != nil {
		return Plan{}, err
	}

	var plan Plan
	if err := jsonx.Extract(raw, &plan); err != nil {
		return Plan{}, &noeticerr.OutputParseError{WorkerID: "plan", Err: err}
	}
	if len(plan.SubQuestions) == 0 {
		return Plan{}, &noeticerr.SchemaViolationError{Pathway: "plan", Field: "subQuestions", Reason: "plan produced zero sub-questions"}
	}

	if err := a.Store.WriteJSONArtifact(projectID, "plan.json", plan); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// batchSubQuestions splits sub-questions into batches of roughly equal size
// so each batch is handled by one of the 3-5 classify workers (spec §4.3).
func batchSubQuestions(qs []SubQuestion, workers int) [][]SubQuestion {
	if workers < 3 {
		workers = 3
	}
	if workers > 5 {
		workers = 5
	}
	if len(qs) < workers {
		workers = len(qs)
	}
	if workers == 0 {
		return nil
	}

	batches := make([][]SubQuestion, workers)
	for i, sq := range qs {
		batches[i%workers] = append(batches[i%workers], sq)
	}
	var out [][]SubQuestion
	for _, b := range batches {
		if len(b) > 0 {
			out = append(out, b)
		}
	}
	return out
}

// ClassifyActivity dispatches one worker per batch of sub-questions,
// concurrency bounded by ClassifyConcurrency, and aggregates the resulting
// evidence items. Items referencing an unknown sub-question or an
// unregistered pathway are dropped and recorded as ledger gaps rather than
// failing the whole phase.
func (a *Activities) ClassifyActivity(ctx context.Context, projectID, topic string, plan Plan) (EvidenceManifest, error) {
	a.publish(projectID, eventbus.EventPhaseStarted, map[string]any{"phase": "researching"})

	concurrency := a.ClassifyConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	batches := batchSubQuestions(plan.SubQuestions, concurrency)

	validSQ := make(map[string]bool, len(plan.SubQuestions))
	for _, sq := range plan.SubQuestions {
		validSQ[sq.ID] = true
	}

	var mu sync.Mutex
	var manifest EvidenceManifest
	var firstErr error

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, batch []SubQuestion) {
			defer wg.Done()
			defer func() { <-sem }()

			raw, err := a.dispatchOne(ctx, "classify", classifyPrompt(topic, batch, a.Pathways.IDs()))
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}

			var partial EvidenceManifest
			if err := jsonx.Extract(raw, &partial); err != nil {
				if a.Ledger != nil {
					_ = a.Ledger.RecordGap(projectID, "classify", fmt.Sprintf("batch-%d", idx), err.Error())
				}
				return
			}

			mu.Lock()
			for _, item := range partial.Items {
				reason := ""
				if !validSQ[item.SubQuestionID] {
					reason = fmt.Sprintf("evidence %s references unknown sub-question %q", item.EvidenceID, item.SubQuestionID)
				} else if _, err := a.Pathways.Get(item.TriggeredPathway); err != nil {
					reason = fmt.Sprintf("evidence %s references unregistered pathway %q", item.EvidenceID, item.TriggeredPathway)
				}
				if reason != "" {
					if a.Ledger != nil {
						_ = a.Ledger.RecordGap(projectID, "classify", fmt.Sprintf("batch-%d", idx), reason)
					}
					continue
				}
				manifest.Items = append(manifest.Items, item)
			}
			mu.Unlock()
		}(i, batch)
	}
	wg.Wait()

	if firstErr != nil && len(manifest.Items) == 0 {
		return EvidenceManifest{}, firstErr
	}

	if err := a.Store.WriteJSONArtifact(projectID, "evidence/manifest-1.json", manifest); err != nil {
		return EvidenceManifest{}, err
	}
	return manifest, nil
}
