// Package enrichment scores content units with a three-class sentiment
// distribution. Scoring is a pure function of the input text, safe to call
// from any number of workers at once.
package enrichment

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/tokenizer"
)

const (
	// DefaultMaxTokens bounds the text a single score looks at.
	DefaultMaxTokens = 512

	negationWindow = 3
	negationDamp   = 0.8
	polarityScale  = 2.0
	neutralBias    = 0.5
	neutralScale   = 1.5
)

// Scorer turns text into a Sentiment using a polarity lexicon with negation
// and intensifier handling, followed by a softmax over the class logits.
type Scorer struct {
	counter   tokenizer.Counter
	maxTokens int
}

// NewScorer returns a Scorer that truncates its input to maxTokens as
// measured by counter. A nil counter counts words.
func NewScorer(counter tokenizer.Counter, maxTokens int) *Scorer {
	if counter == nil {
		counter = tokenizer.WordCounter{}
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Scorer{counter: counter, maxTokens: maxTokens}
}

// Score returns the sentiment distribution of text. Over-long text is
// truncated, never rejected. Empty text scores as mostly neutral.
func (s *Scorer) Score(text string) ingestion.Sentiment {
	text = s.counter.Truncate(text, s.maxTokens)
	tokens := tokenizer.Tokenize(text)

	var pos, neg float64
	content, hits := 0, 0
	for i, tok := range tokens {
		if !tokenizer.IsStopWord(tok.Raw) {
			content++
		}
		weight, ok := polarity(tok)
		if !ok {
			continue
		}
		hits++
		if i > 0 {
			if boost, ok := intensifiers[tokens[i-1].Raw]; ok {
				weight *= boost
			}
		}
		if negatedAt(tokens, i) {
			weight = -weight * negationDamp
		}
		if weight > 0 {
			pos += weight
		} else {
			neg -= weight
		}
	}

	neutralShare := 1.0
	if content > 0 {
		neutralShare = float64(content-hits) / float64(content)
		if neutralShare < 0 {
			neutralShare = 0
		}
	}
	logits := [3]float64{
		polarityScale * math.Log1p(neg),
		neutralBias + neutralScale*neutralShare,
		polarityScale * math.Log1p(pos),
	}
	probs := softmax(logits)
	return ingestion.Sentiment{
		Negative: probs[0],
		Neutral:  probs[1],
		Positive: probs[2],
	}
}

func polarity(tok tokenizer.Token) (float64, bool) {
	if w, ok := lexicon[tok.Raw]; ok {
		return w, true
	}
	w, ok := stemmedLexicon[tok.Term]
	return w, ok
}

func negatedAt(tokens []tokenizer.Token, i int) bool {
	from := i - negationWindow
	if from < 0 {
		from = 0
	}
	for j := from; j < i; j++ {
		if _, ok := negators[tokens[j].Raw]; ok {
			return true
		}
	}
	return false
}

func softmax(logits [3]float64) [3]float64 {
	maxLogit := math.Max(logits[0], math.Max(logits[1], logits[2]))
	var out [3]float64
	var sum float64
	for i, l := range logits {
		out[i] = math.Exp(l - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
