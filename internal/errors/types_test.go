package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindUnsupportedFormat, "UNSUPPORTED_FORMAT"},
		{KindNoExtractableFields, "NO_EXTRACTABLE_FIELDS"},
		{KindExtractionFailure, "EXTRACTION_FAILURE"},
		{KindInferenceFailure, "INFERENCE_FAILURE"},
		{KindInferenceParseFailure, "INFERENCE_PARSE_FAILURE"},
		{KindContextTooLarge, "CONTEXT_TOO_LARGE"},
		{KindMaterializationError, "MATERIALIZATION_ERROR"},
		{Kind(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}

func TestKindRecoverable(t *testing.T) {
	assert.True(t, KindExtractionFailure.Recoverable())
	assert.True(t, KindInferenceFailure.Recoverable())
	assert.True(t, KindInferenceParseFailure.Recoverable())

	assert.False(t, KindUnsupportedFormat.Recoverable())
	assert.False(t, KindNoExtractableFields.Recoverable())
	assert.False(t, KindContextTooLarge.Recoverable())
	assert.False(t, KindMaterializationError.Recoverable())
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := Newf(KindContextTooLarge, "", "context is %d characters", 300000)
	wrapped := fmt.Errorf("prefill: %w", err)

	assert.True(t, stderrors.Is(wrapped, ErrContextTooLarge))
	assert.False(t, stderrors.Is(wrapped, ErrMaterializationError))
	assert.Equal(t, KindContextTooLarge, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(io.EOF))
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(KindExtractionFailure, "notes.pdf", io.ErrUnexpectedEOF)
	require.NotNil(t, err)

	assert.True(t, stderrors.Is(err, io.ErrUnexpectedEOF))
	assert.True(t, stderrors.Is(err, ErrExtractionFailure))
	assert.Contains(t, err.Error(), "notes.pdf")
	assert.Contains(t, err.Error(), "EXTRACTION_FAILURE")
	assert.False(t, err.Timestamp.IsZero())

	assert.Nil(t, Wrap(KindExtractionFailure, "x", nil))
}

func TestWithDetails(t *testing.T) {
	err := New(KindMaterializationError, "form.pdf", "fields missing from template").
		WithDetails("Name", "Email")

	assert.Equal(t, []string{"Name", "Email"}, err.Details)
	assert.Equal(t, "[MATERIALIZATION_ERROR] form.pdf: fields missing from template (Name, Email)", err.Error())
	assert.False(t, err.Recoverable())
}
