package enrichment

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/tokenizer"
)

func sum(s ingestion.Sentiment) float64 {
	return s.Negative + s.Neutral + s.Positive
}

func TestScoreIsADistribution(t *testing.T) {
	scorer := NewScorer(tokenizer.WordCounter{}, 512)
	texts := []string{
		"",
		"Q: How was onboarding?\n1) Great, very helpful team\n2) Terrible docs",
		"The support team was excellent and very helpful",
		"This is not good at all, it crashes constantly",
		strings.Repeat("neutral words about tables and chairs ", 200),
	}
	for _, text := range texts {
		s := scorer.Score(text)
		assert.InDelta(t, 1.0, sum(s), 1e-9)
		assert.GreaterOrEqual(t, s.Negative, 0.0)
		assert.GreaterOrEqual(t, s.Neutral, 0.0)
		assert.GreaterOrEqual(t, s.Positive, 0.0)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	scorer := NewScorer(nil, 0)
	text := "Really frustrating release, but the new dashboard is great."
	first := scorer.Score(text)

	var wg sync.WaitGroup
	results := make([]ingestion.Sentiment, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = scorer.Score(text)
		}(i)
	}
	wg.Wait()
	for _, r := range results {
		assert.Equal(t, first, r)
	}
}

func TestScorePolarity(t *testing.T) {
	scorer := NewScorer(nil, 512)

	pos := scorer.Score("The support team was excellent and very helpful")
	assert.Greater(t, pos.Positive, pos.Negative)
	assert.Greater(t, pos.Positive, pos.Neutral)

	neg := scorer.Score("Awful experience, the app is broken and useless")
	assert.Greater(t, neg.Negative, neg.Positive)

	negated := scorer.Score("This is not good")
	assert.Greater(t, negated.Negative, negated.Positive)

	empty := scorer.Score("")
	assert.Greater(t, empty.Neutral, empty.Positive)
	assert.Greater(t, empty.Neutral, empty.Negative)
}

func TestScoreTruncatesLongInput(t *testing.T) {
	scorer := NewScorer(tokenizer.WordCounter{}, 512)
	head := strings.Repeat("table ", 512)
	long := head + strings.Repeat("terrible ", 100)

	assert.Equal(t, scorer.Score(head), scorer.Score(long))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.1235, Round(0.123456, 4))
	assert.Equal(t, 1.0, Round(0.99999, 4))
}
