package graphbuilder

import (
	"fmt"

	"github.com/dominikbraun/graph"
	"github.com/samber/lo"
)

// ValidationError is one invariant violation found by Validate. Severity
// distinguishes hard errors (the graph must not be persisted) from
// warnings (persisted, but surfaced to the operator).
type ValidationError struct {
	Invariant string
	Detail    string
	Warning   bool
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Invariant, v.Detail)
}

func stringHash(id string) string { return id }

// Validate checks a Graph against all seven invariants from spec §3.7.
// errs are hard failures; warnings are non-fatal but worth surfacing.
func Validate(g Graph) (errs []ValidationError, warnings []ValidationError) {
	nodeByID := make(map[string]Node, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, dup := nodeByID[n.ID]; dup {
			errs = append(errs, ValidationError{Invariant: "node-id-unique", Detail: fmt.Sprintf("duplicate node id %q", n.ID)})
			continue
		}
		nodeByID[n.ID] = n
		if !validNodeTypes[n.Type] {
			errs = append(errs, ValidationError{Invariant: "node-type-domain", Detail: fmt.Sprintf("node %q has unknown type %q", n.ID, n.Type)})
		}
	}

	for _, nt := range []NodeType{NodeDomain, NodeContaminant, NodeHealthEffect, NodeSolution, NodeProduct, NodeRecommendation, NodeContext, NodeInvestigation} {
		for et := range validEdgeTypes {
			if string(nt) == string(et) {
				errs = append(errs, ValidationError{Invariant: "type-name-collision", Detail: fmt.Sprintf("%q is used as both a node type and an edge type", nt)})
			}
		}
	}

	g2 := graph.New(stringHash, graph.Directed())
	for _, n := range g.Nodes {
		_ = g2.AddVertex(n.ID)
	}

	for i, e := range g.Edges {
		if !validEdgeTypes[e.Type] {
			errs = append(errs, ValidationError{Invariant: "edge-type-domain", Detail: fmt.Sprintf("edge %d has unknown type %q", i, e.Type)})
			continue
		}
		source, hasSource := nodeByID[e.Source]
		target, hasTarget := nodeByID[e.Target]
		if !hasSource {
			errs = append(errs, ValidationError{Invariant: "edge-endpoint-exists", Detail: fmt.Sprintf("edge %d references missing source %q", i, e.Source)})
		}
		if !hasTarget {
			errs = append(errs, ValidationError{Invariant: "edge-endpoint-exists", Detail: fmt.Sprintf("edge %d references missing target %q", i, e.Target)})
		}
		if !hasSource || !hasTarget {
			continue
		}

		if rng, ok := edgeDomainRange[e.Type]; ok {
			if !lo.Contains(rng.Source, source.Type) || !lo.Contains(rng.Target, target.Type) {
				errs = append(errs, ValidationError{
					Invariant: "edge-domain-range",
					Detail:    fmt.Sprintf("edge %d (%s) from %s node %q to %s node %q is not a legal pairing", i, e.Type, source.Type, e.Source, target.Type, e.Target),
				})
				continue
			}
		}

		if err := g2.AddEdge(e.Source, e.Target); err != nil {
			errs = append(errs, ValidationError{Invariant: "edge-duplicate", Detail: fmt.Sprintf("edge %d (%s -> %s): %v", i, e.Source, e.Target, err)})
		}
	}

	for _, n := range g.Nodes {
		if n.Parent == "" {
			continue
		}
		if _, ok := nodeByID[n.Parent]; !ok {
			errs = append(errs, ValidationError{Invariant: "parent-exists", Detail: fmt.Sprintf("node %q has missing parent %q", n.ID, n.Parent)})
		}
	}

	for id, t := range g.Topics {
		if _, ok := nodeByID[id]; !ok {
			errs = append(errs, ValidationError{Invariant: "topic-coverage", Detail: fmt.Sprintf("topic attached to missing node %q", id)})
			continue
		}
		if t.Title == "" || len(t.Sections) == 0 {
			errs = append(errs, ValidationError{Invariant: "topic-coverage", Detail: fmt.Sprintf("topic for node %q has no title or sections", id)})
		}
	}
	for id, n := range nodeByID {
		if n.Type == NodeDomain {
			continue
		}
		if _, ok := g.Topics[id]; !ok {
			errs = append(errs, ValidationError{Invariant: "topic-coverage", Detail: fmt.Sprintf("non-domain node %q has no topic entry", id)})
		}
	}

	adjacency, err := g2.AdjacencyMap()
	if err == nil {
		predecessors, perr := g2.PredecessorMap()
		if perr == nil {
			referencedAsParent := make(map[string]bool, len(g.Nodes))
			for _, n := range g.Nodes {
				if n.Parent != "" {
					referencedAsParent[n.Parent] = true
				}
			}
			for id, n := range nodeByID {
				if n.Type == NodeDomain || referencedAsParent[id] {
					continue
				}
				outDegree := len(adjacency[id])
				inDegree := len(predecessors[id])
				if outDegree == 0 && inDegree == 0 {
					errs = append(errs, ValidationError{Invariant: "no-isolated-nodes", Detail: fmt.Sprintf("node %q is not connected to any other node", id)})
				}
			}
		}
	}

	return errs, warnings
}
