// Package sourcematcher matches registered data sources to a research
// topic by tag overlap, using the same tokenization ResearchIndex uses so
// scores are comparable across the system.
package sourcematcher

import (
	"sort"

	"github.com/samber/lo"

	"github.com/antigravity-dev/noetic/internal/sources"
	"github.com/antigravity-dev/noetic/internal/tokenize"
)

// MinScore is the minimum overlap count a source needs to be considered a
// match at all.
const MinScore = 1

// Match pairs a source with its overlap score against the query topic.
type Match struct {
	Source sources.Source
	Score  int
}

// registryOrder captures a source's position in the registry for the
// tie-break rule (spec §4.8: "ties are broken by registry insertion order").
type registryOrder struct {
	source sources.Source
	index  int
}

// Matcher scores sources.Registry entries against a topic. It never
// mutates the registry.
type Matcher struct {
	registry *sources.Registry
}

// New constructs a Matcher over a live registry.
func New(registry *sources.Registry) *Matcher {
	return &Matcher{registry: registry}
}

// Match returns up to maxResults sources whose tags overlap topic's
// tokens, scored and ordered per spec §4.8.
func (m *Matcher) Match(topic string, maxResults int) []Match {
	if maxResults <= 0 {
		maxResults = 5
	}

	topicTokens := tokenize.Tokenize(topic, nil).Set()
	all := m.registry.List()

	candidates := make([]registryOrder, 0, len(all))
	for i, s := range all {
		candidates = append(candidates, registryOrder{source: s, index: i})
	}

	scoredMatches := lo.FilterMap(candidates, func(c registryOrder, _ int) (Match, bool) {
		score := overlapScore(c.source.Tags, topicTokens)
		if score < MinScore {
			return Match{}, false
		}
		return Match{Source: c.source, Score: score}, true
	})

	indexOf := make(map[string]int, len(all))
	for i, s := range all {
		indexOf[s.ID] = i
	}

	sort.SliceStable(scoredMatches, func(i, j int) bool {
		if scoredMatches[i].Score != scoredMatches[j].Score {
			return scoredMatches[i].Score > scoredMatches[j].Score
		}
		return indexOf[scoredMatches[i].Source.ID] < indexOf[scoredMatches[j].Source.ID]
	})

	if len(scoredMatches) > maxResults {
		scoredMatches = scoredMatches[:maxResults]
	}
	return scoredMatches
}

func overlapScore(tags []string, topicTokens map[string]bool) int {
	tagTokens := tokenize.Tokens(lo.FlatMap(tags, func(tag string, _ int) []string {
		return tokenize.Tokenize(tag, nil)
	})).Set()

	score := 0
	for tok := range tagTokens {
		if topicTokens[tok] {
			score++
		}
	}
	return score
}
