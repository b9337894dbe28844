// Package textsim provides the text normalization, similarity, and
// keyword extraction primitives the scoring engine is built on.
package textsim

import (
	"math"
	"strings"
	"unicode"

	"github.com/adrg/strutil/metrics"
	"github.com/bbalet/stopwords"
	"github.com/kljensen/snowball"
)

const keywordLanguage = "english"

// Clean normalizes text for comparison: lowercase, punctuation stripped,
// whitespace collapsed to single spaces.
func Clean(s string) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r):
			// skip
		default:
			if space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = false
			out = append(out, unicode.ToLower(r))
		}
	}
	return string(out)
}

// NormalizedSimilarity computes a character-bigram cosine similarity
// between two already-cleaned strings, in [0,1].
func NormalizedSimilarity(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	cos := metrics.NewCosine()
	cos.CaseSensitive = false
	cos.NgramSize = 2
	return cos.Compare(a, b)
}

// ExtractKeywords returns the set of stemmed content words in text.
// Stop words and short tokens are dropped.
func ExtractKeywords(text string) map[string]struct{} {
	keywords := make(map[string]struct{})
	for _, tok := range contentWords(text) {
		keywords[stem(tok)] = struct{}{}
	}
	return keywords
}

// KeywordSimilarity computes Jaccard overlap between the keyword sets of
// two texts, rounded to 4 decimals. Zero when either set is empty.
func KeywordSimilarity(a, b string) float64 {
	ka := ExtractKeywords(a)
	kb := ExtractKeywords(b)
	if len(ka) == 0 || len(kb) == 0 {
		return 0
	}
	inter := 0
	for k := range ka {
		if _, ok := kb[k]; ok {
			inter++
		}
	}
	union := len(ka) + len(kb) - inter
	return math.Round(float64(inter)/float64(union)*10000) / 10000
}

// MissingKeywords returns up to limit content words from ref whose stems
// do not appear in user, in order of appearance in ref.
func MissingKeywords(user, ref string, limit int) []string {
	have := ExtractKeywords(user)

	var missing []string
	seen := make(map[string]struct{})
	for _, tok := range contentWords(ref) {
		st := stem(tok)
		if _, ok := have[st]; ok {
			continue
		}
		if _, dup := seen[st]; dup {
			continue
		}
		seen[st] = struct{}{}
		missing = append(missing, tok)
		if len(missing) == limit {
			break
		}
	}
	return missing
}

// contentWords tokenizes text with stop words removed, preserving order.
func contentWords(text string) []string {
	cleaned := stopwords.CleanString(Clean(text), "en", false)
	fields := strings.Fields(cleaned)
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 3 {
			continue
		}
		words = append(words, f)
	}
	return words
}

func stem(word string) string {
	s, err := snowball.Stem(word, keywordLanguage, true)
	if err != nil || s == "" {
		return word
	}
	return s
}
