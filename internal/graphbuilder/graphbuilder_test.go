package graphbuilder

import "testing"

func baseGraph() Graph {
	nodes := []Node{
		BuildNode("domain-1", "PFAS in drinking water", NodeDomain),
		BuildNode("contaminant-1", "PFOA", NodeContaminant, WithParent("domain-1")),
		BuildNode("health-1", "Thyroid disruption", NodeHealthEffect, WithParent("domain-1")),
		BuildNode("investigation-1", "Literature review", NodeInvestigation, WithParent("domain-1")),
	}
	edges := []Edge{
		BuildEdge("contaminant-1", "health-1", "linked to", EdgeCausation, WithCitations("Smith 2020")),
		BuildEdge("investigation-1", "contaminant-1", "examined", EdgeEvidence),
	}
	topics := map[string]Topic{
		"contaminant-1":   {Title: "PFOA", Sections: []string{"overview"}},
		"health-1":        {Title: "Thyroid disruption", Sections: []string{"overview"}},
		"investigation-1": {Title: "Literature review", Sections: []string{"summary"}},
	}
	return NewGraph("PFAS in drinking water", "proj-1", "v1", nodes, edges, topics)
}

func TestValidateAcceptsWellFormedGraph(t *testing.T) {
	g := baseGraph()
	errs, warnings := Validate(g)
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %+v", errs)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %+v", warnings)
	}
}

func TestValidateRejectsDuplicateNodeID(t *testing.T) {
	g := baseGraph()
	g.Nodes = append(g.Nodes, BuildNode("contaminant-1", "dup", NodeContaminant))
	errs, _ := Validate(g)
	if !hasInvariant(errs, "node-id-unique") {
		t.Fatalf("expected node-id-unique violation, got %+v", errs)
	}
}

func TestValidateRejectsMissingEdgeEndpoint(t *testing.T) {
	g := baseGraph()
	g.Edges = append(g.Edges, BuildEdge("contaminant-1", "ghost", "linked to", EdgeCausation))
	errs, _ := Validate(g)
	if !hasInvariant(errs, "edge-endpoint-exists") {
		t.Fatalf("expected edge-endpoint-exists violation, got %+v", errs)
	}
}

func TestValidateRejectsMissingParent(t *testing.T) {
	g := baseGraph()
	g.Nodes = append(g.Nodes, BuildNode("orphan", "orphan", NodeContaminant, WithParent("nowhere")))
	errs, _ := Validate(g)
	if !hasInvariant(errs, "parent-exists") {
		t.Fatalf("expected parent-exists violation, got %+v", errs)
	}
}

func TestValidateRejectsIllegalEdgeDomainRange(t *testing.T) {
	g := baseGraph()
	g.Edges = append(g.Edges, BuildEdge("health-1", "contaminant-1", "causes", EdgeCausation))
	errs, _ := Validate(g)
	if !hasInvariant(errs, "edge-domain-range") {
		t.Fatalf("expected edge-domain-range violation, got %+v", errs)
	}
}

func TestValidateRejectsIsolatedNonDomainNode(t *testing.T) {
	g := baseGraph()
	g.Nodes = append(g.Nodes, BuildNode("solution-1", "Install filter", NodeSolution))
	g.Topics["solution-1"] = Topic{Title: "Install filter", Sections: []string{"overview"}}
	errs, _ := Validate(g)
	if !hasInvariant(errs, "no-isolated-nodes") {
		t.Fatalf("expected no-isolated-nodes violation, got %+v", errs)
	}
}

func TestValidateRejectsMissingTopicCoverage(t *testing.T) {
	g := baseGraph()
	delete(g.Topics, "health-1")
	errs, _ := Validate(g)
	if !hasInvariant(errs, "topic-coverage") {
		t.Fatalf("expected topic-coverage violation, got %+v", errs)
	}
}

func TestValidateRejectsEmptyTopicSections(t *testing.T) {
	g := baseGraph()
	g.Topics["health-1"] = Topic{Title: "Thyroid disruption"}
	errs, _ := Validate(g)
	if !hasInvariant(errs, "topic-coverage") {
		t.Fatalf("expected topic-coverage violation for empty sections, got %+v", errs)
	}
}

func TestValidateAllowsDomainNodeWithoutTopic(t *testing.T) {
	g := baseGraph()
	errs, _ := Validate(g)
	for _, e := range errs {
		if e.Detail == `non-domain node "domain-1" has no topic entry` {
			t.Fatalf("domain node should not require topic coverage")
		}
	}
}

func TestCitationUnmarshalsBareString(t *testing.T) {
	var c Citation
	if err := c.UnmarshalJSON([]byte(`"Smith 2020"`)); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.Text != "Smith 2020" {
		t.Fatalf("expected migrated text, got %+v", c)
	}
}

func TestCitationUnmarshalsStructuredObject(t *testing.T) {
	var c Citation
	if err := c.UnmarshalJSON([]byte(`{"text":"Smith 2020","doi":"10.1/x"}`)); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.Text != "Smith 2020" || c.DOI != "10.1/x" {
		t.Fatalf("unexpected citation: %+v", c)
	}
}

func hasInvariant(errs []ValidationError, invariant string) bool {
	for _, e := range errs {
		if e.Invariant == invariant {
			return true
		}
	}
	return false
}
