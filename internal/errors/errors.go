// Package errors provides structured error types for taskgraph.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
)

// Code represents a unique error code.
type Code string

// Error codes for taskgraph.
const (
	// Lookup errors
	CodeProjectNotFound  Code = "PROJECT_NOT_FOUND"
	CodeTaskNotFound     Code = "TASK_NOT_FOUND"
	CodeRuleNotFound     Code = "RULE_NOT_FOUND"
	CodeTemplateNotFound Code = "TEMPLATE_NOT_FOUND"

	// Input errors
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeNoSuggestion Code = "NO_SUGGESTION"

	// Config errors
	CodeConfigInvalid Code = "CONFIG_INVALID"

	// Storage errors
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
)

// Category groups error codes for exit status mapping.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryNotFound
	CategoryBadRequest
	CategoryUnavailable
)

var codeCategories = map[Code]Category{
	CodeProjectNotFound:    CategoryNotFound,
	CodeTaskNotFound:       CategoryNotFound,
	CodeRuleNotFound:       CategoryNotFound,
	CodeTemplateNotFound:   CategoryNotFound,
	CodeInvalidInput:       CategoryBadRequest,
	CodeNoSuggestion:       CategoryBadRequest,
	CodeConfigInvalid:      CategoryBadRequest,
	CodeStorageUnavailable: CategoryUnavailable,
}

// ExitCode returns the process exit status for a category.
func (c Category) ExitCode() int {
	switch c {
	case CategoryNotFound:
		return 3
	case CategoryBadRequest:
		return 2
	case CategoryUnavailable:
		return 4
	default:
		return 1
	}
}

// Error is the structured error type for taskgraph.
type Error struct {
	Code  Code   `json:"code"`
	What  string `json:"what"`
	Why   string `json:"why,omitempty"`
	Fix   string `json:"fix,omitempty"`
	Cause error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly message for CLI output.
func (e *Error) UserMessage() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString("\n\nWhy: ")
		b.WriteString(e.Why)
	}
	if e.Fix != "" {
		b.WriteString("\n\nFix: ")
		b.WriteString(e.Fix)
	}
	return b.String()
}

// Category returns the error category.
func (e *Error) Category() Category {
	if cat, ok := codeCategories[e.Code]; ok {
		return cat
	}
	return CategoryUnknown
}

// ExitCode returns the process exit status for this error.
func (e *Error) ExitCode() int {
	return e.Category().ExitCode()
}

// MarshalJSON implements json.Marshaler.
func (e *Error) MarshalJSON() ([]byte, error) {
	type alias Error
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// Is reports whether target is an Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:  e.Code,
		What:  e.What,
		Why:   e.Why,
		Fix:   e.Fix,
		Cause: err,
	}
}

// --- Error constructors ---

// ErrProjectNotFound returns an error when a project doesn't exist.
func ErrProjectNotFound(id string) *Error {
	return &Error{
		Code: CodeProjectNotFound,
		What: fmt.Sprintf("project %s not found", id),
		Why:  "No project with this ID exists",
		Fix:  "Run 'taskgraph project list' to see available projects",
	}
}

// ErrTaskNotFound returns an error when a task doesn't exist in the given project.
func ErrTaskNotFound(projectID, taskID string) *Error {
	return &Error{
		Code: CodeTaskNotFound,
		What: fmt.Sprintf("task %s not found", taskID),
		Why:  fmt.Sprintf("No task with this ID exists in project %s", projectID),
		Fix:  "Run 'taskgraph task list' to see available tasks",
	}
}

// ErrRuleNotFound returns an error when an automation rule doesn't exist.
func ErrRuleNotFound(id string) *Error {
	return &Error{
		Code: CodeRuleNotFound,
		What: fmt.Sprintf("rule %s not found", id),
		Fix:  "Run 'taskgraph rule list' to see registered rules",
	}
}

// ErrTemplateNotFound returns an error when a recurring template doesn't exist.
func ErrTemplateNotFound(id string) *Error {
	return &Error{
		Code: CodeTemplateNotFound,
		What: fmt.Sprintf("recurring template %s not found", id),
		Fix:  "Run 'taskgraph recur list' to see recurring templates",
	}
}

// ErrInvalidInput returns an error for input that cannot be defaulted.
func ErrInvalidInput(field, reason string) *Error {
	return &Error{
		Code: CodeInvalidInput,
		What: fmt.Sprintf("invalid %s", field),
		Why:  reason,
	}
}

// ErrNoSuggestion returns an error when an AI response contained nothing usable.
func ErrNoSuggestion(reason string) *Error {
	return &Error{
		Code: CodeNoSuggestion,
		What: "no suggestion produced",
		Why:  reason,
	}
}

// ErrConfigInvalid returns an error for invalid configuration.
func ErrConfigInvalid(field, reason string) *Error {
	return &Error{
		Code: CodeConfigInvalid,
		What: fmt.Sprintf("invalid configuration: %s", field),
		Why:  reason,
		Fix:  "Check .taskgraph/config.yaml and fix the invalid field",
	}
}

// ErrStorageUnavailable returns an error when the persistence backend cannot be opened.
func ErrStorageUnavailable(backend string, cause error) *Error {
	return &Error{
		Code:  CodeStorageUnavailable,
		What:  fmt.Sprintf("%s storage is unavailable", backend),
		Fix:   "Check storage.path / storage.dsn in the configuration",
		Cause: cause,
	}
}

// AsError returns the *Error in err's chain, or nil.
func AsError(err error) *Error {
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return nil
}

// HasCode reports whether err's chain contains an *Error with the given code.
func HasCode(err error, code Code) bool {
	e := AsError(err)
	return e != nil && e.Code == code
}

// Wrap wraps a generic error into an Error with unknown code.
func Wrap(err error, what string) *Error {
	return &Error{
		Code:  Code("UNKNOWN"),
		What:  what,
		Cause: err,
	}
}
