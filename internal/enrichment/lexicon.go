package enrichment

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/tokenizer"
)

var lexicon = map[string]float64{
	// positive
	"good": 1, "great": 1.5, "excellent": 2, "amazing": 2, "awesome": 1.8,
	"love": 1.8, "loved": 1.8, "like": 0.6, "liked": 0.6, "happy": 1.5,
	"helpful": 1.2, "easy": 1, "fast": 0.8, "clear": 0.8, "useful": 1,
	"satisfied": 1.3, "recommend": 1.2, "best": 1.8, "nice": 1, "perfect": 2,
	"wonderful": 1.8, "fantastic": 1.9, "enjoy": 1.2, "enjoyed": 1.2,
	"friendly": 1, "reliable": 1.1, "smooth": 0.9, "improved": 0.9,
	"positive": 1, "pleased": 1.3, "impressive": 1.5, "convenient": 1,
	"efficient": 1, "thanks": 0.8, "thank": 0.8, "appreciate": 1.1,
	"works": 0.5, "better": 0.8, "glad": 1.2, "fine": 0.5, "okay": 0.2,
	"ok": 0.2, "valuable": 1.2, "responsive": 0.9, "intuitive": 1.1,

	// negative
	"bad": -1.2, "terrible": -2, "awful": -2, "horrible": -2, "poor": -1.3,
	"hate": -1.8, "hated": -1.8, "dislike": -1, "worst": -2, "slow": -0.8,
	"difficult": -0.9, "hard": -0.6, "confusing": -1.1, "confused": -0.9,
	"broken": -1.5, "bug": -0.9, "bugs": -0.9, "buggy": -1.3, "crash": -1.4,
	"crashes": -1.4, "error": -0.8, "errors": -0.8, "fail": -1.2,
	"failed": -1.2, "fails": -1.2, "problem": -0.9, "problems": -0.9,
	"issue": -0.7, "issues": -0.7, "unhappy": -1.5, "disappointed": -1.5,
	"disappointing": -1.5, "frustrating": -1.6, "frustrated": -1.5,
	"annoying": -1.3, "useless": -1.7, "expensive": -0.8, "worse": -1.2,
	"complicated": -0.9, "unreliable": -1.4, "negative": -1, "angry": -1.6,
	"waste": -1.4, "lacking": -0.8, "missing": -0.6, "unclear": -0.9,
	"unusable": -1.8, "sad": -1.2, "painful": -1.4, "lag": -0.7,
}

var stemmedLexicon = buildStemmedLexicon()

func buildStemmedLexicon() map[string]float64 {
	words := make([]string, 0, len(lexicon))
	for word := range lexicon {
		words = append(words, word)
	}
	// Sorted so that colliding stems resolve the same way on every start.
	sort.Strings(words)
	out := make(map[string]float64, len(words))
	for _, word := range words {
		stem := tokenizer.Stem(word)
		if _, taken := out[stem]; !taken {
			out[stem] = lexicon[word]
		}
	}
	return out
}

var negators = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "none": {}, "nobody": {}, "nothing": {},
	"neither": {}, "nor": {}, "without": {}, "hardly": {}, "barely": {},
	"cannot": {}, "can't": {}, "don't": {}, "doesn't": {}, "didn't": {},
	"isn't": {}, "wasn't": {}, "aren't": {}, "weren't": {}, "won't": {},
	"wouldn't": {}, "shouldn't": {}, "couldn't": {}, "haven't": {},
	"hasn't": {}, "dont": {}, "doesnt": {}, "didnt": {}, "isnt": {},
	"wasnt": {}, "cant": {}, "wont": {},
}

var intensifiers = map[string]float64{
	"very": 1.5, "really": 1.4, "extremely": 1.8, "incredibly": 1.7,
	"super": 1.5, "highly": 1.5, "absolutely": 1.7, "totally": 1.5,
	"completely": 1.5, "quite": 1.2, "too": 1.2, "so": 1.3,
	"slightly": 0.6, "somewhat": 0.7, "fairly": 0.8, "rather": 0.9,
	"barely": 0.5, "little": 0.7,
}
