package pipeline

import (
	"fmt"
	"strings"
)

// planPrompt asks a single worker to decompose topic into 5-8 sub-questions.
func planPrompt(topic, priorResearch string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a research planner investigating: %q\n\n", topic)
	b.WriteString("Decompose this topic into 5 to 8 distinct, answerable sub-questions. ")
	b.WriteString("Each sub-question should be independently investigable and, where relevant, name the kinds of evidence ")
	b.WriteString("that would answer it (one or more of: SCI, GOV, ORG, EXP, STA, FIN, DOC, MED, HIS, TES, TEC).\n\n")
	if priorResearch != "" {
		b.WriteString(priorResearch)
		b.WriteString("\n\n")
	}
	b.WriteString(`Respond with ONLY a JSON object:
{
  "subQuestions": [
    {"id": "sq-1", "text": "...", "expectedEvidenceTypes": ["SCI", "GOV"]}
  ]
}`)
	return b.String()
}

// classifyPrompt asks a worker to produce evidence items for one batch of
// sub-questions, each naming the pathway it should trigger.
func classifyPrompt(topic string, batch []SubQuestion, pathwayIDs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are classifying evidence sources for the research topic %q.\n\n", topic)
	b.WriteString("For each sub-question below, identify 1-3 evidence items a researcher would need to gather. ")
	b.WriteString("Each evidence item must name a triggeredPathway from this registered set: ")
	b.WriteString(strings.Join(pathwayIDs, ", "))
	b.WriteString(".\n\nSub-questions:\n")
	for _, sq := range batch {
		fmt.Fprintf(&b, "- %s: %s\n", sq.ID, sq.Text)
	}
	b.WriteString(`
Respond with ONLY a JSON object:
{
  "items": [
    {
      "evidenceId": "ev-1",
      "subQuestionId": "sq-1",
      "type": "SCI",
      "description": "...",
      "citation": {"text": "..."},
      "sourceReliability": "B",
      "informationCredibility": 3,
      "triggeredPathway": "P-SCI"
    }
  ]
}`)
	return b.String()
}

// contrarianPrompt builds a targeted evidence item for the contrarian
// pathway, spawned when a claim's consensus exceeds the threshold.
func contrarianPrompt(claim string) string {
	return fmt.Sprintf("Identify the strongest credible contrarian counter-evidence to this claim: %q. "+
		"Respond with ONLY a JSON object: {\"evidenceId\": \"ev-contrarian-1\", \"subQuestionId\": \"\", "+
		"\"type\": \"SCI\", \"description\": \"...\", \"citation\": {\"text\": \"...\"}, "+
		"\"sourceReliability\": \"B\", \"informationCredibility\": 3, \"triggeredPathway\": %q}", claim, contrarianPathwayID)
}

// synthesizePrompt asks a worker to author the full knowledge graph from
// the adjudicated evidence, retrying with validator errors on failure.
func synthesizePrompt(topic string, adjudicatedJSON, priorErrors string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are synthesizing the knowledge graph for research on %q from the adjudicated evidence below.\n\n", topic)
	b.WriteString(adjudicatedJSON)
	b.WriteString("\n\n")
	b.WriteString("Build nodes of type domain, contaminant, health-effect, solution, product, recommendation, context, or investigation. ")
	b.WriteString("Build edges of type causation, evidence, composition, addresses, gap, contextualizes, or investigates, respecting each type's ")
	b.WriteString("domain/range (e.g. causation only from contaminant/context to health-effect). Every non-domain node needs a topics[] entry ")
	b.WriteString("with a title and at least one section. No node may be structurally isolated.\n\n")
	if priorErrors != "" {
		fmt.Fprintf(&b, "Your previous attempt failed validation. Fix these issues:\n%s\n\n", priorErrors)
	}
	b.WriteString(`Respond with ONLY a JSON object matching:
{
  "nodes": [{"id": "...", "label": "...", "type": "..."}],
  "edges": [{"source": "...", "target": "...", "label": "...", "type": "..."}],
  "topics": {"node-id": {"title": "...", "sections": ["..."]}}
}`)
	return b.String()
}
