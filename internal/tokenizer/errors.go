package tokenizer

import (
	"errors"
	"fmt"
)

var (
	// ErrNotTrained is returned by any query made before Fit has completed.
	ErrNotTrained = errors.New("tokenizer is not trained")
	// ErrInvalidConfig is the root of every *ConfigError.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrEmptyCorpus is returned when Fit receives zero text segments.
	ErrEmptyCorpus = errors.New("corpus is empty")
	// ErrOutOfRangeID is the root of every *IDError.
	ErrOutOfRangeID = errors.New("token id out of range")
	// ErrMalformedInput marks input that violates the sequence-of-text contract.
	ErrMalformedInput = errors.New("malformed input")
	// ErrFormatVersion is returned when a saved model has an unsupported format version.
	ErrFormatVersion = errors.New("unsupported model format version")
)

// ConfigError names the offending configuration field and value.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// IDError reports an id outside [0, Size).
type IDError struct {
	ID   int
	Size int
}

func (e *IDError) Error() string {
	return fmt.Sprintf("token id %d out of range [0, %d)", e.ID, e.Size)
}

func (e *IDError) Unwrap() error { return ErrOutOfRangeID }
