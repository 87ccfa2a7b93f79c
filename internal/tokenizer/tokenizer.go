// Package tokenizer splits text into normalised word tokens for the sentiment
// lexicon and bounds text length in model tokens. Word tokens keep their byte
// span in the source so text can be cut at a token boundary.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "so": {}, "can": {}, "i": {}, "we": {}, "you": {},
}

// Token represents a single normalised term, its position among the words
// of the text and its byte span in the original text.
type Token struct {
	Term     string
	Raw      string
	Position int
	Start    int
	End      int
}

// Tokenize breaks text into lowercased, stemmed Tokens. Unlike a search
// tokenizer it keeps stop-words and negations, because both carry weight
// when scoring sentiment.
func Tokenize(text string) []Token {
	tokens := make([]Token, 0, len(text)/6)
	pos := 0
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		raw := strings.Trim(text[start:end], "'’")
		if raw != "" {
			lower := strings.ToLower(raw)
			tokens = append(tokens, Token{
				Term:     Stem(lower),
				Raw:      lower,
				Position: pos,
				Start:    start,
				End:      end,
			})
			pos++
		}
		start = -1
	}
	for i, r := range text {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))
	return tokens
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '’'
}

// IsStopWord reports whether the lowercased word carries no content.
func IsStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}

// Stem applies a simple suffix-stripping stemmer to the given word.
func Stem(word string) string {
	if utf8.RuneCountInString(word) < 4 {
		return word
	}
	for _, rule := range suffixes {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}

var suffixes = []struct {
	suffix      string
	replacement string
	minLen      int
}{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}
