package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotInitialized  = errors.New("rule set is not initialized")
	ErrNotSupported    = errors.New("operation is not supported")
	ErrUnknownHelper   = errors.New("unknown helper value")
	ErrUnknownExternal = errors.New("unknown external handler")
)

// ConfigurationError is raised when a rule cannot be executed as written.
type ConfigurationError struct {
	Rule   string
	Reason string
	Err    error
}

func (e ConfigurationError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	if e.Rule == "" {
		return "configuration error: " + msg
	}
	return fmt.Sprintf("configuration error in rule '%s': %s", e.Rule, msg)
}

func (e ConfigurationError) Unwrap() error {
	return e.Err
}

func configError(rule, format string, args ...any) ConfigurationError {
	return ConfigurationError{Rule: rule, Reason: fmt.Sprintf(format, args...)}
}

// ConversionError is raised when a value cannot be flowed into a target type.
type ConversionError struct {
	From  AttrType
	To    AttrType
	Value string
	Err   error
}

func (e ConversionError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("cannot convert %s value '%s' to %s", e.From, e.Value, e.To)
	}
	return fmt.Sprintf("cannot convert %s value to %s", e.From, e.To)
}

func (e ConversionError) Unwrap() error {
	return e.Err
}
