package tracker

import (
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true, "is": true,
	"are": true, "was": true, "were": true, "be": true, "to": true, "of": true, "in": true,
	"on": true, "at": true, "for": true, "with": true, "by": true, "from": true, "this": true,
	"that": true, "it": true, "its": true, "as": true, "i": true, "we": true, "you": true,
	"he": true, "she": true, "they": true, "me": true, "my": true, "our": true, "your": true,
	"his": true, "her": true, "their": true, "pls": true, "please": true, "hi": true,
	"hello": true, "ok": true, "okay": true, "sir": true, "madam": true, "ji": true,
	"has": true, "have": true, "had": true, "will": true, "can": true, "do": true, "does": true,
	"so": true, "if": true, "not": true, "no": true, "yes": true, "all": true, "any": true,
}

// Tokens returns the case-insensitive keyword set of text minus stopwords.
func Tokens(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if stopwords[f] {
			continue
		}
		out[f] = struct{}{}
	}
	return out
}

// Jaccard returns |a∩b| / |a∪b|. Two empty sets score 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
