package tokenize

import "testing"

func TestTokenizeLowercasesAndStripsPunctuation(t *testing.T) {
	tokens := Tokenize("PFAS, Water-Contamination!", nil)
	set := tokens.Set()
	for _, want := range []string{"pfas", "water", "contamination"} {
		if !set[want] {
			t.Fatalf("expected token %q in %v", want, tokens)
		}
	}
}

func TestTokenizeDropsStopWordsAndShortTokens(t *testing.T) {
	tokens := Tokenize("the risk is of a contaminant", nil)
	set := tokens.Set()
	for _, unwanted := range []string{"the", "is", "of", "a"} {
		if set[unwanted] {
			t.Fatalf("expected %q to be dropped, got %v", unwanted, tokens)
		}
	}
}

func TestTokenizeGeneratesBigrams(t *testing.T) {
	tokens := Tokenize("drinking water contamination", nil)
	found := false
	for _, tok := range tokens {
		if tok == "drinking water" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected bigram 'drinking water' in %v", tokens)
	}
}

func TestExpandIncludesOriginalAndSynonyms(t *testing.T) {
	expanded := Expand(Tokens{"cancer"}, nil)
	set := expanded.Set()
	if !set["cancer"] || !set["carcinoma"] {
		t.Fatalf("expected original + synonym, got %v", expanded)
	}
}

func TestExpandDeduplicates(t *testing.T) {
	expanded := Expand(Tokens{"cancer", "cancer"}, nil)
	count := 0
	for _, tok := range expanded {
		if tok == "cancer" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected single occurrence, got %d", count)
	}
}

func TestExpandLeavesBigramsUnexpanded(t *testing.T) {
	expanded := Expand(Tokens{"drinking water"}, nil)
	if len(expanded) != 1 || expanded[0] != "drinking water" {
		t.Fatalf("expected bigram to pass through untouched, got %v", expanded)
	}
}

func TestExpandIsDeterministic(t *testing.T) {
	a := Expand(Tokenize("PFAS water contamination risk", nil), nil)
	b := Expand(Tokenize("PFAS water contamination risk", nil), nil)
	if len(a) != len(b) {
		t.Fatalf("non-deterministic lengths: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("non-deterministic ordering at %d: %q vs %q", i, a[i], b[i])
		}
	}
}
