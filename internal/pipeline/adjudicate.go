package pipeline

import (
	"context"
	"fmt"

	"github.com/antigravity-dev/noetic/internal/eventbus"
	"github.com/antigravity-dev/noetic/internal/investigation"
)

// resultsBySubQuestion groups pathway results by the sub-question their
// triggering evidence item belonged to.
func resultsBySubQuestion(manifest EvidenceManifest, results []investigation.PathwayResult) map[string][]investigation.PathwayResult {
	subQOf := make(map[string]string, len(manifest.Items))
	for _, item := range manifest.Items {
		subQOf[item.EvidenceID] = item.SubQuestionID
	}

	out := make(map[string][]investigation.PathwayResult)
	for _, r := range results {
		sq := subQOf[r.EvidenceID]
		out[sq] = append(out[sq], r)
	}
	return out
}

// qualifyingLevels flattens every non-gap level across a sub-question's
// pathway results into the slice ComputeConfidence expects.
func qualifyingLevels(results []investigation.PathwayResult) []investigation.LevelOutput {
	var out []investigation.LevelOutput
	for _, r := range results {
		out = append(out, r.Levels...)
	}
	return out
}

// deriveFlags reads the qualitative modifier signals out of each level's
// branchSignals/findings maps, since worker output carries them as
// free-form booleans rather than a typed Flags struct. A flag is set if
// any qualifying level reports it.
func deriveFlags(levels []investigation.LevelOutput) investigation.Flags {
	var f investigation.Flags
	get := func(l investigation.LevelOutput, key string) bool {
		if v, ok := l.BranchSignals[key]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
		if v, ok := l.Findings[key]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
		return false
	}

	f.MethodologySound = true
	for _, l := range levels {
		if !l.EvidenceFound || l.Gap {
			continue
		}
		f.IndustryFunded = f.IndustryFunded || get(l, "industryFunded")
		f.IndependentlyReplicated = f.IndependentlyReplicated || get(l, "independentlyReplicated")
		f.TestimonialOnly = f.TestimonialOnly || get(l, "testimonialOnly")
		f.CaseReportAnimalOrInVitroOnly = f.CaseReportAnimalOrInVitroOnly || get(l, "caseReportAnimalOrInVitroOnly")
		f.SampleSizeUnder30 = f.SampleSizeUnder30 || get(l, "sampleSizeUnder30")
		f.PHackingOrCherryPicking = f.PHackingOrCherryPicking || get(l, "pHackingOrCherryPicking")
		f.LargeEffectSizeFromQualityStudy = f.LargeEffectSizeFromQualityStudy || get(l, "largeEffectSizeFromQualityStudy")
		f.ConfirmedDoseResponse = f.ConfirmedDoseResponse || get(l, "confirmedDoseResponse")
		if get(l, "methodologyUnsound") {
			f.MethodologySound = false
		}
		if get(l, "unresolvedBiasFlags") {
			f.UnresolvedBiasFlags = true
		}
	}
	return f
}

// consensusLevel is the fraction of found, non-gap levels whose evidence
// actually supports the claim — the basis for spec §3.6's invariant 3
// contrarian trigger. This is a claim-agreement measure, not a
// source-quality one: a level reports support explicitly via a
// claimSupported signal where its pathway sets one (the contrarian
// pathway's second level always does); absent that signal,
// evidenceFound && !retracted is itself the support signal, since an
// ordinary pathway level only exists to confirm the claim it was
// dispatched to investigate.
func consensusLevel(levels []investigation.LevelOutput) float64 {
	var found, supporting int
	for _, l := range levels {
		if !l.EvidenceFound || l.Gap {
			continue
		}
		found++
		if l.Retracted {
			continue
		}
		if claimSupported(l) {
			supporting++
		}
	}
	if found == 0 {
		return 0
	}
	return float64(supporting) / float64(found)
}

// claimSupported reads an explicit claimSupported signal off a level's
// branch signals or findings; a level that never reports one is treated
// as supportive by default, matching how evidenceFound already implies
// agreement for the ordinary (non-contrarian) pathways.
func claimSupported(l investigation.LevelOutput) bool {
	if v, ok := l.BranchSignals["claimSupported"]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	if v, ok := l.Findings["claimSupported"]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return true
}

// AdjudicateActivity computes confidence per sub-question, derives
// consensus claims, and spawns the contrarian pathway (P-CON) for any
// claim whose consensus exceeds the threshold before finalizing (spec
// §3.6 invariant 3).
func (a *Activities) AdjudicateActivity(ctx context.Context, projectID string, plan Plan, manifest EvidenceManifest, results []investigation.PathwayResult) ([]investigation.AdjudicatedEvidence, error) {
	a.publish(projectID, eventbus.EventPhaseStarted, map[string]any{"phase": "adjudicating"})

	bySubQ := resultsBySubQuestion(manifest, results)
	subQText := make(map[string]string, len(plan.SubQuestions))
	for _, sq := range plan.SubQuestions {
		subQText[sq.ID] = sq.Text
	}

	var out []investigation.AdjudicatedEvidence
	for sqID, subResults := range bySubQ {
		levels := qualifyingLevels(subResults)
		flags := deriveFlags(levels)
		confidence, rationale := investigation.ComputeConfidence(levels, flags)

		claimConsensus := consensusLevel(levels)
		contrarianTriggered := false
		contrarianResult := ""
		if claimConsensus > consensusContrarianThreshold {
			if p, err := a.Pathways.Get(contrarianPathwayID); err == nil {
				contrarianTriggered = true
				contrarianEvidence := investigation.EvidenceItem{
					EvidenceID:       fmt.Sprintf("%s-contrarian", sqID),
					SubQuestionID:    sqID,
					Type:             p.Trigger.EvidenceType,
					Description:      contrarianPrompt(subQText[sqID]),
					TriggeredPathway: p.ID,
				}
				outcome, err := a.executor().Run(ctx, projectID, p, contrarianEvidence)
				if err == nil {
					subResults = append(subResults, outcome.Result)
					if len(outcome.Result.Levels) > 0 {
						contrarianResult = outcome.Result.Levels[len(outcome.Result.Levels)-1].GapReason
						if !outcome.Result.Levels[len(outcome.Result.Levels)-1].Gap {
							contrarianResult = "contrarian evidence gathered"
						}
					}
					counterFlags := deriveFlags(outcome.Result.Levels)
					for _, l := range outcome.Result.Levels {
						if l.EvidenceFound && !l.Gap && !claimSupported(l) &&
							investigation.CredibleContrarian(l, counterFlags.TestimonialOnly || counterFlags.CaseReportAnimalOrInVitroOnly) {
							flags.CredibleContrarianCounter = true
						}
					}
					if outcome.Retracted {
						confidence = investigation.ConfidenceRetracted
					} else if investigation.DetectDisputed(append(levels, outcome.Result.Levels...)) {
						confidence = investigation.ConfidenceDisputed
					} else if flags.CredibleContrarianCounter {
						confidence, rationale = investigation.ComputeConfidence(levels, flags)
					}
				}
			}
		}

		flagNames := flagsToNames(flags)

		adjudicated := investigation.AdjudicatedEvidence{
			EvidenceID:          sqID,
			Confidence:          confidence,
			ConfidenceRationale: joinRationale(rationale),
			PathwayResultsRef:   fmt.Sprintf("investigation/%s", sqID),
			Flags:               flagNames,
			ConsensusClaims: []investigation.ConsensusClaim{
				{
					Claim:                       subQText[sqID],
					ConsensusLevel:              claimConsensus,
					ContrarianAnalysisTriggered: contrarianTriggered,
					ContrarianResult:            contrarianResult,
				},
			},
		}
		out = append(out, adjudicated)

		if err := a.Store.WriteJSONArtifact(projectID, fmt.Sprintf("adjudication/%s-adjudicated.json", sqID), adjudicated); err != nil {
			return nil, err
		}
	}

	if err := a.Store.WriteJSONArtifact(projectID, adjudicatedArtifact, out); err != nil {
		return nil, err
	}

	return out, nil
}

func flagsToNames(f investigation.Flags) []string {
	var names []string
	add := func(on bool, name string) {
		if on {
			names = append(names, name)
		}
	}
	add(f.IndustryFunded, "industryFunded")
	add(f.IndependentlyReplicated, "independentlyReplicated")
	add(f.TestimonialOnly, "testimonialOnly")
	add(f.CaseReportAnimalOrInVitroOnly, "caseReportAnimalOrInVitroOnly")
	add(f.SampleSizeUnder30, "sampleSizeUnder30")
	add(f.PHackingOrCherryPicking, "pHackingOrCherryPicking")
	add(f.LargeEffectSizeFromQualityStudy, "largeEffectSizeFromQualityStudy")
	add(f.ConfirmedDoseResponse, "confirmedDoseResponse")
	add(f.UnresolvedBiasFlags, "unresolvedBiasFlags")
	add(!f.MethodologySound, "methodologyUnsound")
	return names
}

func joinRationale(r []string) string {
	out := ""
	for i, s := range r {
		if i > 0 {
			out += "; "
		}
		out += s
	}
	return out
}
