package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"configuration", New(ErrConfiguration, "missing BUCKET_NAME"), KindFatal},
		{"validation", New(ErrValidation, "folderPath is required"), KindPermanent},
		{"not found", Wrap(ErrNotFound, errors.New("storage: object doesn't exist"), "fetch"), KindPermanent},
		{"malformed", Newf(ErrMalformedDocument, "no text in %s", "a.pdf"), KindPermanent},
		{"upstream", New(ErrUpstreamUnavailable, "503"), KindTransient},
		{"connection", New(ErrConnection, "refused"), KindTransient},
		{"timeout", New(ErrTimeout, "deadline"), KindTransient},
		{"unexpected", New(ErrUnexpected, "panic"), KindTransient},
		{"deadline", context.DeadlineExceeded, KindTransient},
		{"unknown", errors.New("something odd"), KindTransient},
		{"wrapped permanent", fmt.Errorf("stage fetch: %w", New(ErrNotFound, "gone")), KindPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestWrapKeepsBothErrors(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(ErrUpstreamUnavailable, cause, "vector store upsert")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "upstream unavailable: vector store upsert: connection reset", err.Error())

	assert.ErrorIs(t, Wrap(ErrTimeout, nil, "slow"), ErrTimeout)
}

func TestAppErrorMessage(t *testing.T) {
	err := New(ErrValidation, "filename is required")
	assert.Equal(t, "validation failed: filename is required", err.Error())
	assert.True(t, IsPermanent(err))
	assert.False(t, IsPermanent(nil))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "transient", KindTransient.String())
	assert.Equal(t, "permanent", KindPermanent.String())
	assert.Equal(t, "fatal", KindFatal.String())
}
