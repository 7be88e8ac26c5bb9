package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/antigravity-dev/noetic/internal/eventbus"
	"github.com/antigravity-dev/noetic/internal/graphbuilder"
	"github.com/antigravity-dev/noetic/internal/investigation"
	"github.com/antigravity-dev/noetic/internal/jsonx"
)

// graphDraft is the wire shape the synthesis worker emits: bare nodes,
// edges and topics, assembled into a full graphbuilder.Graph (with its
// computed Meta) by the caller.
type graphDraft struct {
	Nodes  []graphbuilder.Node            `json:"nodes"`
	Edges  []graphbuilder.Edge            `json:"edges"`
	Topics map[string]graphbuilder.Topic `json:"topics"`
}

const pipelineVersion = "1.0"

// SynthesizeActivity dispatches the synthesis worker, validates its graph,
// and retries once with the validator's errors appended before giving up
// (spec §4.6).
func (a *Activities) SynthesizeActivity(ctx context.Context, projectID, topic string, adjudicated []investigation.AdjudicatedEvidence) (graphbuilder.Graph, error) {
	a.publish(projectID, eventbus.EventPhaseStarted, map[string]any{"phase": "synthesizing"})

	adjJSON, err := json.MarshalIndent(adjudicated, "", "  ")
	if err != nil {
		return graphbuilder.Graph{}, err
	}

	draft, err := a.synthesizeOnce(ctx, topic, string(adjJSON), "")
	if err != nil {
		return graphbuilder.Graph{}, err
	}

	g := graphbuilder.NewGraph(topic, projectID, pipelineVersion, draft.Nodes, draft.Edges, draft.Topics)
	errs, warnings := graphbuilder.Validate(g)
	for _, w := range warnings {
		a.logger().Warn("graph validation warning", "project", projectID, "invariant", w.Invariant, "detail", w.Detail)
	}
	if len(errs) == 0 {
		a.publish(projectID, eventbus.EventNodeAdded, map[string]any{"nodeCount": len(g.Nodes)})
		if err := a.Store.WriteJSONArtifact(projectID, "graph.json", g); err != nil {
			return graphbuilder.Graph{}, err
		}
		return g, nil
	}

	a.logger().Warn("graph failed validation, retrying synthesis once", "project", projectID, "errors", len(errs))
	draft, err = a.synthesizeOnce(ctx, topic, string(adjJSON), joinValidationErrors(errs))
	if err != nil {
		return graphbuilder.Graph{}, err
	}

	g = graphbuilder.NewGraph(topic, projectID, pipelineVersion, draft.Nodes, draft.Edges, draft.Topics)
	errs, _ = graphbuilder.Validate(g)
	if len(errs) > 0 {
		return graphbuilder.Graph{}, fmt.Errorf("synthesis: graph failed validation after retry: %s", joinValidationErrors(errs))
	}

	if err := a.Store.WriteJSONArtifact(projectID, "graph.json", g); err != nil {
		return graphbuilder.Graph{}, err
	}
	return g, nil
}

func (a *Activities) synthesizeOnce(ctx context.Context, topic, adjudicatedJSON, priorErrors string) (graphDraft, error) {
	raw, err := a.dispatchOne(ctx, "synthesize", synthesizePrompt(topic, adjudicatedJSON, priorErrors))
	if err != nil {
		return graphDraft{}, err
	}
	var draft graphDraft
	if err := jsonx.Extract(raw, &draft); err != nil {
		return graphDraft{}, err
	}
	return draft, nil
}

func joinValidationErrors(errs []graphbuilder.ValidationError) string {
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += "\n"
		}
		out += e.Error()
	}
	return out
}
