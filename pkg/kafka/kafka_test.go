package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reference struct {
	FolderPath string `json:"folderPath"`
	Filename   string `json:"filename"`
}

func TestDecodeJSON(t *testing.T) {
	ref, err := DecodeJSON[reference]([]byte(`{"folderPath":"a","filename":"b.pdf"}`))
	require.NoError(t, err)
	assert.Equal(t, reference{FolderPath: "a", Filename: "b.pdf"}, ref)

	_, err = DecodeJSON[reference]([]byte(`not json`))
	assert.Error(t, err)
}

func TestCommitWithoutGenerationIsStale(t *testing.T) {
	c := &GroupConsumer{}
	err := c.Commit(Event{Topic: "traces", Partition: 0, Offset: 4, Generation: 1})
	assert.ErrorIs(t, err, ErrStaleGeneration)
}
