package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a failure in the form-filling pipeline
type Kind int

const (
	KindUnknown Kind = iota
	KindUnsupportedFormat
	KindNoExtractableFields
	KindExtractionFailure
	KindInferenceFailure
	KindInferenceParseFailure
	KindContextTooLarge
	KindMaterializationError
)

// Sentinels for errors.Is checks. Any *Error of the same kind matches.
var (
	ErrUnsupportedFormat     = &Error{Kind: KindUnsupportedFormat}
	ErrNoExtractableFields   = &Error{Kind: KindNoExtractableFields}
	ErrExtractionFailure     = &Error{Kind: KindExtractionFailure}
	ErrInferenceFailure      = &Error{Kind: KindInferenceFailure}
	ErrInferenceParseFailure = &Error{Kind: KindInferenceParseFailure}
	ErrContextTooLarge       = &Error{Kind: KindContextTooLarge}
	ErrMaterializationError  = &Error{Kind: KindMaterializationError}
)

// String returns a string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindUnsupportedFormat:
		return "UNSUPPORTED_FORMAT"
	case KindNoExtractableFields:
		return "NO_EXTRACTABLE_FIELDS"
	case KindExtractionFailure:
		return "EXTRACTION_FAILURE"
	case KindInferenceFailure:
		return "INFERENCE_FAILURE"
	case KindInferenceParseFailure:
		return "INFERENCE_PARSE_FAILURE"
	case KindContextTooLarge:
		return "CONTEXT_TOO_LARGE"
	case KindMaterializationError:
		return "MATERIALIZATION_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Recoverable reports whether the pipeline keeps going after an error of
// this kind. Recoverable errors are recorded on the document or field that
// produced them; the others are returned to the caller.
func (k Kind) Recoverable() bool {
	switch k {
	case KindExtractionFailure, KindInferenceFailure, KindInferenceParseFailure:
		return true
	default:
		return false
	}
}

// Error is the typed error carried through the pipeline
type Error struct {
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	Subject   string    `json:"subject,omitempty"` // file path, field label, document id
	Details   []string  `json:"details,omitempty"`
	Err       error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", e.Kind)
	if e.Subject != "" {
		fmt.Fprintf(&b, " %s:", e.Subject)
	}
	if e.Message != "" {
		b.WriteString(" ")
		b.WriteString(e.Message)
	}
	if len(e.Details) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(e.Details, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the wrapped cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Recoverable reports whether the error is recorded in place rather than propagated
func (e *Error) Recoverable() bool {
	return e.Kind.Recoverable()
}

// New creates an Error of the given kind
func New(kind Kind, subject, message string) *Error {
	return &Error{
		Kind:      kind,
		Message:   message,
		Subject:   subject,
		Timestamp: time.Now(),
	}
}

// Newf creates an Error with a formatted message
func Newf(kind Kind, subject, format string, args ...any) *Error {
	return New(kind, subject, fmt.Sprintf(format, args...))
}

// Wrap wraps err as an Error of the given kind. A nil err yields nil.
func Wrap(kind Kind, subject string, err error) *Error {
	if err == nil {
		return nil
	}
	e := New(kind, subject, "")
	e.Err = err
	return e
}

// WithDetails appends details such as missing field names
func (e *Error) WithDetails(details ...string) *Error {
	e.Details = append(e.Details, details...)
	return e
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
