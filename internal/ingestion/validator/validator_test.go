package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/errors"
)

func TestDecodeValidReference(t *testing.T) {
	ref, err := Decode([]byte(`{"folderPath":"surveys/2024","filename":"q3.pdf"}`))
	require.NoError(t, err)
	assert.Equal(t, "surveys/2024", ref.FolderPath)
	assert.Equal(t, "q3.pdf", ref.Filename)
}

func TestDecodeRejections(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		fields  []string
	}{
		{"empty folder path", `{"folderPath":"","filename":"x.pdf"}`, []string{"folderPath"}},
		{"blank filename", `{"folderPath":"a","filename":"   "}`, []string{"filename"}},
		{"missing both", `{}`, []string{"folderPath", "filename"}},
		{"oversized folder", `{"folderPath":"` + strings.Repeat("a", 1025) + `","filename":"x.pdf"}`, []string{"folderPath"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
			assert.True(t, apperrors.IsPermanent(err))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			for _, f := range tt.fields {
				assert.Contains(t, verr.Fields, f)
			}
			assert.Len(t, verr.Fields, len(tt.fields))
		})
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{"folderPath":`))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
}

func TestValidationErrorIsSorted(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"filename": "filename is required", "folderPath": "folderPath is required"}}
	assert.Equal(t, "filename:filename is required; folderPath:folderPath is required", err.Error())
}
