package investigation

// ComputeConfidence applies the deterministic base rating (spec §4.5
// steps 1-5) followed by the eight ordered modifiers. It is a pure
// function: the phase-4 adjudication activity derives qualifyingResults
// and flags from PathwayResults, then calls this so the rating itself
// stays independently testable.
func ComputeConfidence(qualifyingResults []LevelOutput, flags Flags) (Confidence, []string) {
	var rationale []string

	for _, r := range qualifyingResults {
		if r.Retracted {
			rationale = append(rationale, "retraction flag present")
			return ConfidenceRetracted, rationale
		}
	}

	if DetectDisputed(qualifyingResults) {
		rationale = append(rationale, "independent A/B-rated sources disagree on a reported signal")
		return ConfidenceDisputed, rationale
	}

	abConfirmations, cOrLowerConfirmations := countConfirmations(qualifyingResults)

	base := baseRating(abConfirmations, cOrLowerConfirmations, flags, &rationale)
	return applyModifiers(base, flags, &rationale), rationale
}

// countConfirmations splits found-evidence levels into A/B-rated and
// C-or-lower-rated confirmation counts.
func countConfirmations(results []LevelOutput) (abConfirmations, cOrLowerConfirmations int) {
	for _, r := range results {
		if !r.EvidenceFound || r.Gap {
			continue
		}
		switch r.SourceRating {
		case RatingA, RatingB:
			abConfirmations++
		default:
			cOrLowerConfirmations++
		}
	}
	return
}

func baseRating(abConfirmations, cOrLowerConfirmations int, flags Flags, rationale *[]string) Confidence {
	total := abConfirmations + cOrLowerConfirmations

	switch {
	case abConfirmations >= 3 && !flags.UnresolvedBiasFlags && flags.MethodologySound:
		*rationale = append(*rationale, "3+ independent A/B-rated confirmations, no bias flags, sound methodology")
		return ConfidenceVerified
	case (total >= 1 && total <= 2) || cOrLowerConfirmations >= 3 || flags.UnresolvedBiasFlags:
		*rationale = append(*rationale, "1-2 confirmations, or 3+ lower-rated confirmations, or minor bias flags")
		return ConfidencePlausible
	default:
		*rationale = append(*rationale, "insufficient corroboration")
		return ConfidenceUnverified
	}
}

// applyModifiers applies the eight named modifiers in spec order. Caps
// only tighten a rating (never loosen past Unverified); downgrade/upgrade
// move exactly one step along V > P > U.
func applyModifiers(base Confidence, flags Flags, rationale *[]string) Confidence {
	c := base

	if flags.IndustryFunded && !flags.IndependentlyReplicated {
		c = capAt(c, ConfidencePlausible)
		*rationale = append(*rationale, "industry funding without independent replication: capped at P")
	}
	if flags.TestimonialOnly {
		c = capAt(c, ConfidencePlausible)
		*rationale = append(*rationale, "testimonial-only evidence: capped at P")
	}
	if flags.CaseReportAnimalOrInVitroOnly {
		c = capAt(c, ConfidencePlausible)
		*rationale = append(*rationale, "case-report/animal/in-vitro only: capped at P")
	}
	if flags.SampleSizeUnder30 {
		c = capAt(c, ConfidencePlausible)
		*rationale = append(*rationale, "sample size < 30: capped at P")
	}
	if flags.PHackingOrCherryPicking {
		c = downgrade(c)
		*rationale = append(*rationale, "p-hacking or cherry-picking detected: downgraded one level")
	}
	if flags.CredibleContrarianCounter {
		c = downgrade(c)
		*rationale = append(*rationale, "credible contrarian counter: downgraded one level")
	}
	if flags.LargeEffectSizeFromQualityStudy {
		c = upgrade(c)
		*rationale = append(*rationale, "large effect size from quality study: upgraded one level")
	}
	if flags.ConfirmedDoseResponse {
		c = upgrade(c)
		*rationale = append(*rationale, "confirmed dose-response relationship: upgraded one level")
	}

	return c
}

// ordering places V above P above U; D and R are outside this scale and
// pass through caps/upgrades/downgrades unchanged (a dispute or
// retraction is not something a quality-of-evidence modifier overrides).
var rank = map[Confidence]int{
	ConfidenceVerified:   2,
	ConfidencePlausible:  1,
	ConfidenceUnverified: 0,
}

func capAt(c, ceiling Confidence) Confidence {
	if c == ConfidenceDisputed || c == ConfidenceRetracted {
		return c
	}
	if rank[c] > rank[ceiling] {
		return ceiling
	}
	return c
}

func downgrade(c Confidence) Confidence {
	if c == ConfidenceDisputed || c == ConfidenceRetracted {
		return c
	}
	switch c {
	case ConfidenceVerified:
		return ConfidencePlausible
	case ConfidencePlausible:
		return ConfidenceUnverified
	default:
		return ConfidenceUnverified
	}
}

func upgrade(c Confidence) Confidence {
	if c == ConfidenceDisputed || c == ConfidenceRetracted {
		return c
	}
	switch c {
	case ConfidenceUnverified:
		return ConfidencePlausible
	case ConfidencePlausible:
		return ConfidenceVerified
	default:
		return ConfidenceVerified
	}
}

// CredibleContrarian implements Open Question decision 3: a contrarian
// counter is "credible" only when it comes from an A/B-rated source,
// carries an information-credibility rating of 2 or better, and is not
// itself testimonial- or case-report-only.
func CredibleContrarian(r LevelOutput, testimonialOrCaseReportOnly bool) bool {
	if testimonialOrCaseReportOnly {
		return false
	}
	if r.SourceRating != RatingA && r.SourceRating != RatingB {
		return false
	}
	return r.InfoRating >= 1 && r.InfoRating <= 2
}

// DetectDisputed reports whether two independent high-quality
// (A/B-rated) pathway outputs contradict each other on any branch signal
// key they both report, the spec §4.5 step-2 condition for Confidence D.
// "Contradict" means both reported evidenceFound, are A/B-rated, and
// disagree on the value of some signal both of them set — e.g. two SCI
// pathway levels disagreeing on replicationConfirms. Scanning every
// shared key rather than one fixed name lets this fire across whichever
// pathway produced the qualifying levels, not just the contrarian one.
func DetectDisputed(results []LevelOutput) bool {
	byKey := make(map[string][]any)
	for _, r := range results {
		if !r.EvidenceFound || r.Gap {
			continue
		}
		if r.SourceRating != RatingA && r.SourceRating != RatingB {
			continue
		}
		for k, v := range r.BranchSignals {
			byKey[k] = append(byKey[k], v)
		}
	}
	for _, values := range byKey {
		for i := 0; i < len(values); i++ {
			for j := i + 1; j < len(values); j++ {
				if !looseEquals(values[i], values[j]) {
					return true
				}
			}
		}
	}
	return false
}
