package util

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes
var (
	// ErrUnsupported indicates an input format or operation is not supported
	ErrUnsupported = errors.New("unsupported")

	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrPartialInput indicates one file of a required pair is missing
	ErrPartialInput = errors.New("partial input")

	// ErrDuplicate indicates a datapoint with the same content hash already exists
	ErrDuplicate = errors.New("duplicate datapoint")
)

// Kind classifies a failure by the pipeline stage that produced it
type Kind string

const (
	KindParse                 Kind = "ParseError"
	KindParseSettings         Kind = "ParseSettingsError"
	KindConvertStandardFormat Kind = "ConvertStandardFormatError"
	KindIntermediateFormat    Kind = "IntermediateFormatGenerationError"
	KindQuantification        Kind = "QuantificationError"
	KindDatapointGeneration   Kind = "DatapointGenerationError"
	KindDatapointAppend       Kind = "DatapointAppendError"
	KindSubmission            Kind = "SubmissionError"
	KindPartialInput          Kind = "PartialInputError"
)

// KindError carries an error kind, the operation that failed, and the
// offending parameter when there is one
type KindError struct {
	Kind  Kind
	Op    string
	Param string
	Err   error
}

func (e *KindError) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Param != "" {
		msg += fmt.Sprintf(" [%s]", e.Param)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *KindError) Unwrap() error {
	return e.Err
}

// NewKindError wraps err with the given kind
func NewKindError(kind Kind, op, param string, err error) *KindError {
	return &KindError{Kind: kind, Op: op, Param: param, Err: err}
}

// Errorf builds a KindError with a formatted cause. %w verbs are honored.
func Errorf(kind Kind, op, param, format string, args ...interface{}) *KindError {
	return &KindError{Kind: kind, Op: op, Param: param, Err: fmt.Errorf(format, args...)}
}

// IsKind reports whether err, or any error it wraps, is a KindError of kind
func IsKind(err error, kind Kind) bool {
	var ke *KindError
	for err != nil {
		if !errors.As(err, &ke) {
			return false
		}
		if ke.Kind == kind {
			return true
		}
		err = ke.Err
	}
	return false
}

// KindOf returns the outermost kind in err's chain, or "" when there is none
func KindOf(err error) Kind {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return ""
}
