// Package tokenize implements the single token-bag construction shared by
// ResearchIndex and SourceMatcher, so a query and an indexed entry are
// always compared on the same terms (spec §9: "store the synonym table and
// stop-word list as configurable constants; do not bury them in source
// code").
package tokenize

import "strings"

// StopWords is the default drop list. Configurable at call sites that want
// a different list; nothing in this package hardcodes it beyond here.
var StopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "has": true,
	"have": true, "was": true, "were": true, "with": true, "this": true,
	"that": true, "from": true, "what": true, "when": true, "how": true,
	"does": true, "did": true, "its": true, "into": true, "about": true,
	"than": true, "then": true, "their": true, "there": true, "these": true,
	"those": true, "which": true, "while": true, "will": true, "would": true,
}

// Synonyms is the default static expansion table: unigram -> equivalent
// unigrams (inclusive of itself is not required, callers add the original
// token separately). Configurable by passing a different table to Expand.
var Synonyms = map[string][]string{
	"cancer":       {"carcinoma", "malignancy", "oncology"},
	"pfas":         {"forever", "perfluoro"},
	"water":        {"drinking", "aquifer"},
	"contaminant":  {"pollutant", "toxin"},
	"toxin":        {"contaminant", "poison"},
	"risk":         {"hazard", "danger"},
	"study":        {"research", "trial"},
	"chemical":     {"compound", "substance"},
}

// MinTokenLength is the shortest a token may be to survive tokenization.
const MinTokenLength = 3

// Tokens is a bag of lowercase, order-preserving tokens derived from text.
type Tokens []string

// Tokenize lowercases text, strips non-alphanumeric runs into separators,
// drops stop words and tokens shorter than MinTokenLength, and appends
// adjacent bigrams after the unigram pass (spec §4.7 step 1).
func Tokenize(text string, stopWords map[string]bool) Tokens {
	if stopWords == nil {
		stopWords = StopWords
	}

	raw := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})

	var unigrams []string
	for _, tok := range raw {
		if len(tok) < MinTokenLength || stopWords[tok] {
			continue
		}
		unigrams = append(unigrams, tok)
	}

	out := make(Tokens, 0, len(unigrams)*2)
	out = append(out, unigrams...)
	for i := 0; i+1 < len(unigrams); i++ {
		out = append(out, unigrams[i]+" "+unigrams[i+1])
	}
	return out
}

// Expand maps each unigram in tokens through synonyms to a deduplicated bag
// that includes the original tokens. Bigrams (tokens containing a space)
// pass through unexpanded. The result is deterministic for a given input
// and synonym table (spec §4.7 step 2: "MUST be reproducible").
func Expand(tokens Tokens, synonyms map[string][]string) Tokens {
	if synonyms == nil {
		synonyms = Synonyms
	}

	seen := make(map[string]bool, len(tokens)*2)
	out := make(Tokens, 0, len(tokens)*2)
	add := func(tok string) {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}

	for _, tok := range tokens {
		add(tok)
		if strings.Contains(tok, " ") {
			continue
		}
		for _, syn := range synonyms[tok] {
			add(syn)
		}
	}
	return out
}

// Set returns tokens as a membership set, useful for overlap scoring.
func (t Tokens) Set() map[string]bool {
	set := make(map[string]bool, len(t))
	for _, tok := range t {
		set[tok] = true
	}
	return set
}
