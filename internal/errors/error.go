package errors

import (
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryOrdering  Category = "ordering"
	CategoryLifecycle Category = "lifecycle"
	CategoryEffect    Category = "effect"
	CategoryConfig    Category = "config"
	CategoryScenario  Category = "scenario"
	CategoryExport    Category = "export"
	CategoryCLI       Category = "cli"
)

// Site identifies where inside a component instance an error happened.
type Site struct {
	Instance string
	Slot     int
}

// String returns the site as "instance, slot N".
func (s *Site) String() string {
	if s == nil {
		return ""
	}
	if s.Slot < 0 {
		return "instance " + s.Instance
	}
	return fmt.Sprintf("instance %s, slot %d", s.Instance, s.Slot)
}

// HookError is a structured error with a code, a site, and a fix suggestion.
type HookError struct {
	// Code is a unique error identifier (e.g., "H001").
	Code string

	// Category is the error type.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Site is the instance and slot the error refers to, if any.
	Site *Site

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *HookError) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *HookError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is a HookError with the same code.
func (e *HookError) Is(target error) bool {
	t, ok := target.(*HookError)
	if !ok || t.Code == "" {
		return false
	}
	return t.Code == e.Code
}

// WithSite records the instance and slot the error refers to.
// Pass a negative slot for instance-level errors.
func (e *HookError) WithSite(instance string, slot int) *HookError {
	e.Site = &Site{Instance: instance, Slot: slot}
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *HookError) WithSuggestion(s string) *HookError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *HookError) WithDetail(d string) *HookError {
	e.Detail = d
	return e
}

// WithDetailf adds a formatted detailed explanation to the error.
func (e *HookError) WithDetailf(format string, args ...any) *HookError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// Wrap wraps another error.
func (e *HookError) Wrap(err error) *HookError {
	e.Wrapped = err
	return e
}

// New creates a HookError from a registered error code.
func New(code string) *HookError {
	template, ok := registry[code]
	if !ok {
		return &HookError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &HookError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		DocURL:   template.DocURL,
	}
}

// Newf creates a new HookError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *HookError {
	return &HookError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a HookError.
func FromError(err error, code string) *HookError {
	if err == nil {
		return nil
	}
	if he, ok := err.(*HookError); ok {
		return he
	}
	return New(code).Wrap(err)
}

// Explain returns the registered long-form explanation for the error's code.
func (e *HookError) Explain() string {
	if t, ok := registry[e.Code]; ok {
		return t.Detail
	}
	return ""
}
