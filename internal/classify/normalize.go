package classify

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var ligatures = strings.NewReplacer(
	"œ", "oe", "Œ", "oe",
	"æ", "ae", "Æ", "ae",
	"×", "x",
	"’", "'",
	"²", "2",
)

// Fold lower-cases s, strips diacritics and collapses whitespace.
// Fold(Fold(s)) == Fold(s).
func Fold(s string) string {
	s = ligatures.Replace(s)
	// transformers keep state, so one chain per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// Tokens splits folded text into alphanumeric words.
func Tokens(folded string) []string {
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// wordSet is a tokenized text supporting keyword, prefix and phrase lookups.
type wordSet struct {
	tokens []string
	joined string
	index  map[string]struct{}
}

func newWordSet(text string) *wordSet {
	tokens := Tokens(Fold(text))
	index := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		index[t] = struct{}{}
	}
	return &wordSet{
		tokens: tokens,
		joined: " " + strings.Join(tokens, " ") + " ",
		index:  index,
	}
}

// match reports whether kw occurs. A trailing "*" makes kw a prefix, a space makes it a phrase.
func (w *wordSet) match(kw string) bool {
	if strings.HasSuffix(kw, "*") {
		prefix := strings.TrimSuffix(kw, "*")
		if strings.Contains(prefix, " ") {
			return strings.Contains(w.joined, " "+prefix)
		}
		for _, t := range w.tokens {
			if strings.HasPrefix(t, prefix) {
				return true
			}
		}
		return false
	}
	if strings.Contains(kw, " ") {
		return strings.Contains(w.joined, " "+kw+" ")
	}
	_, ok := w.index[kw]
	return ok
}

// first returns the first keyword of kws present in the set.
func (w *wordSet) first(kws []string) (string, bool) {
	for _, kw := range kws {
		if w.match(kw) {
			return kw, true
		}
	}
	return "", false
}

func (w *wordSet) any(kws []string) bool {
	_, ok := w.first(kws)
	return ok
}
