package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"tokenwarden/pkg/oauth"
)

// Error types reported by LoadError.
const (
	ErrorTypeIO         = "io"
	ErrorTypeParse      = "parse"
	ErrorTypeEnv        = "env"
	ErrorTypeValidation = "validation"
)

// LoadError describes a failure to load the configuration file. It matches
// oauth.ErrConfiguration via errors.Is.
type LoadError struct {
	FilePath   string // Full path to the file that caused the error, empty for env errors
	ErrorType  string // One of the ErrorType constants
	LineNumber int    // Line number where the error occurred (if available)
	Err        error
}

// Error implements the error interface
func (e *LoadError) Error() string {
	location := e.FilePath
	if location == "" {
		location = "environment"
	}
	if e.LineNumber > 0 {
		location = fmt.Sprintf("%s:%d", location, e.LineNumber)
	}
	return fmt.Sprintf("configuration %s error in %s: %v", e.ErrorType, location, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, oauth.ErrConfiguration) true.
func (e *LoadError) Is(target error) bool {
	return target == oauth.ErrConfiguration
}

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

// newParseError wraps a yaml error, pulling out the first line number the
// decoder reported.
func newParseError(path string, err error) *LoadError {
	loadErr := &LoadError{FilePath: path, ErrorType: ErrorTypeParse, Err: err}
	if m := yamlLinePattern.FindStringSubmatch(err.Error()); m != nil {
		loadErr.LineNumber, _ = strconv.Atoi(m[1])
	}
	return loadErr
}

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	messages := make([]string, 0, len(ve))
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// Is makes errors.Is(err, oauth.ErrConfiguration) true.
func (ve ValidationErrors) Is(target error) bool {
	return target == oauth.ErrConfiguration
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string) {
	*ve = append(*ve, ValidationError{Field: field, Message: message})
}
