package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeKeepsNegationsAndStopWords(t *testing.T) {
	tokens := Tokenize("I don't like it!")
	raws := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		raws = append(raws, tok.Raw)
	}
	assert.Equal(t, []string{"i", "don't", "like", "it"}, raws)
	assert.Equal(t, 3, tokens[3].Position)
}

func TestTokenizeSpans(t *testing.T) {
	text := "Hello,  World"
	tokens := Tokenize(text)
	require.Len(t, tokens, 2)
	assert.Equal(t, "Hello", text[tokens[0].Start:tokens[0].End])
	assert.Equal(t, "World", text[tokens[1].Start:tokens[1].End])
}

func TestStem(t *testing.T) {
	cases := map[string]string{
		"crashes": "crash",
		"not":     "not",
		"bugs":    "bug",
	}
	for in, want := range cases {
		assert.Equal(t, want, Stem(in), in)
	}
}

func TestIsStopWord(t *testing.T) {
	assert.True(t, IsStopWord("the"))
	assert.False(t, IsStopWord("not"))
	assert.False(t, IsStopWord("terrible"))
}

func TestWordCounterTruncate(t *testing.T) {
	c := WordCounter{}
	assert.Equal(t, "one two", c.Truncate("one two three four", 2))
	assert.Equal(t, "short", c.Truncate("short", 10))
	assert.Equal(t, "", c.Truncate("anything", 0))

	long := strings.Repeat("word ", 600)
	truncated := c.Truncate(long, 512)
	assert.Equal(t, 512, c.Count(truncated))
}

func TestNewCounterWords(t *testing.T) {
	c, err := NewCounter("words")
	require.NoError(t, err)
	assert.IsType(t, WordCounter{}, c)
}
