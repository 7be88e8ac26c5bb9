package graphbuilder

// BuildNode constructs a Node, applying the optional mutators in order.
// It performs no validation itself; call Validate on the assembled Graph
// once all nodes and edges are in place.
func BuildNode(id, label string, typ NodeType, opts ...NodeOption) Node {
	n := Node{ID: id, Label: label, Type: typ}
	for _, opt := range opts {
		opt(&n)
	}
	return n
}

// NodeOption mutates a Node under construction.
type NodeOption func(*Node)

func WithParent(parentID string) NodeOption {
	return func(n *Node) { n.Parent = parentID }
}

func WithSeverity(severity string) NodeOption {
	return func(n *Node) { n.Severity = severity }
}

func WithConfidence(c Confidence, score float64) NodeOption {
	return func(n *Node) {
		n.Confidence = c
		n.ConfidenceScore = score
	}
}

func WithSummary(summary string) NodeOption {
	return func(n *Node) { n.Summary = summary }
}

func WithKeyStats(stats map[string]any) NodeOption {
	return func(n *Node) { n.KeyStats = stats }
}

// BuildEdge constructs an Edge between two existing node ids.
func BuildEdge(source, target, label string, typ EdgeType, opts ...EdgeOption) Edge {
	e := Edge{Source: source, Target: target, Label: label, Type: typ}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// EdgeOption mutates an Edge under construction.
type EdgeOption func(*Edge)

func WithEdgeConfidence(confidence float64) EdgeOption {
	return func(e *Edge) { e.Confidence = confidence }
}

func WithWeight(weight int) EdgeOption {
	return func(e *Edge) { e.Weight = weight }
}

// WithCitations accepts either raw strings or Citation values; strings
// are migrated to {text: s} (Open Question decision 1), matching the
// UnmarshalJSON behavior for graphs loaded from disk.
func WithCitations(citations ...any) EdgeOption {
	return func(e *Edge) {
		for _, c := range citations {
			switch v := c.(type) {
			case string:
				e.Citations = append(e.Citations, Citation{Text: v})
			case Citation:
				e.Citations = append(e.Citations, v)
			}
		}
	}
}

// NewGraph assembles a Graph shell with computed meta counts. Topics may
// be nil; it is initialized to an empty map so JSON output is "{}" rather
// than "null".
func NewGraph(topic, projectID, pipelineVersion string, nodes []Node, edges []Edge, topics map[string]Topic) Graph {
	if topics == nil {
		topics = map[string]Topic{}
	}
	dist := map[string]int{}
	for _, n := range nodes {
		if n.Confidence != "" {
			dist[string(n.Confidence)]++
		}
	}
	return Graph{
		Meta: Meta{
			Topic:                   topic,
			ProjectID:               projectID,
			PipelineVersion:         pipelineVersion,
			NodeCount:               len(nodes),
			EdgeCount:               len(edges),
			ConfidenceDistribution: dist,
		},
		Nodes:  nodes,
		Edges:  edges,
		Topics: topics,
	}
}
