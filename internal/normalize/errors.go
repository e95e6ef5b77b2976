package normalize

import (
	"errors"
	"fmt"
)

// Reason tags why a normalization config was rejected.
type Reason string

const (
	ReasonMissingParameter    Reason = "missing_parameter"
	ReasonInvalidRange        Reason = "invalid_range"
	ReasonEmptyReference      Reason = "empty_reference_distribution"
	ReasonUnregisteredCustom  Reason = "unregistered_custom_method"
	ReasonUnexpectedParameter Reason = "unexpected_parameter"
	ReasonInvalidParameter    Reason = "invalid_parameter"
	ReasonUnknownMethod       Reason = "unknown_method"
)

var (
	ErrMissingParameter    = errors.New(string(ReasonMissingParameter))
	ErrInvalidRange        = errors.New(string(ReasonInvalidRange))
	ErrEmptyReference      = errors.New(string(ReasonEmptyReference))
	ErrUnregisteredCustom  = errors.New(string(ReasonUnregisteredCustom))
	ErrUnexpectedParameter = errors.New(string(ReasonUnexpectedParameter))
	ErrInvalidParameter    = errors.New(string(ReasonInvalidParameter))
	ErrUnknownMethod       = errors.New(string(ReasonUnknownMethod))
)

var sentinels = map[Reason]error{
	ReasonMissingParameter:    ErrMissingParameter,
	ReasonInvalidRange:        ErrInvalidRange,
	ReasonEmptyReference:      ErrEmptyReference,
	ReasonUnregisteredCustom:  ErrUnregisteredCustom,
	ReasonUnexpectedParameter: ErrUnexpectedParameter,
	ReasonInvalidParameter:    ErrInvalidParameter,
	ReasonUnknownMethod:       ErrUnknownMethod,
}

// ConfigError is the only error kind the normalizer produces.
type ConfigError struct {
	Method Method
	Field  string // offending parameter, empty when not field-specific
	Reason Reason
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("normalize %s: %s", e.Method, e.Reason)
	}
	return fmt.Sprintf("normalize %s: %s: %s", e.Method, e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidRange) and friends match on the reason.
func (e *ConfigError) Is(target error) bool {
	s, ok := sentinels[e.Reason]
	return ok && s == target
}

func configErr(m Method, field string, r Reason) *ConfigError {
	return &ConfigError{Method: m, Field: field, Reason: r}
}

// AsConfigError unwraps err into a *ConfigError.
func AsConfigError(err error) (*ConfigError, bool) {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
