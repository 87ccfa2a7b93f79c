package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectName(t *testing.T) {
	tests := []struct {
		ref  DocumentReference
		want string
	}{
		{DocumentReference{FolderPath: "surveys/2024", Filename: "q3.pdf"}, "surveys/2024/q3.pdf"},
		{DocumentReference{FolderPath: "surveys/2024/", Filename: "q3.pdf"}, "surveys/2024/q3.pdf"},
		{DocumentReference{FolderPath: `surveys\2024`, Filename: " q3.pdf "}, "surveys/2024/q3.pdf"},
		{DocumentReference{FolderPath: "", Filename: "q3.pdf"}, "q3.pdf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.ref.ObjectName())
	}
}

func TestIdentifier(t *testing.T) {
	ref := DocumentReference{FolderPath: "a", Filename: "q3.pdf"}
	assert.Equal(t, "q3.pdf_chunk_0", Identifier(ref.DocumentName(), 0))
	assert.Equal(t, "q3.pdf_chunk_12", Identifier(ref.DocumentName(), 12))
}
