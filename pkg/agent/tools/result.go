package tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"ai-notetaking-agent/pkg/agent/bulk"
)

type ErrorKind string

const (
	KindUnknownTool      ErrorKind = "unknown_tool"
	KindInvalidArguments ErrorKind = "invalid_arguments"
	KindNotFound         ErrorKind = "not_found"
	KindValidation       ErrorKind = "validation"
	KindInternal         ErrorKind = "internal"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)

type ToolError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"error"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewToolError(kind ErrorKind, format string, args ...interface{}) *ToolError {
	return &ToolError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Result is what every registry call returns: a value or a typed error, never both.
type Result struct {
	Value interface{}
	Err   *ToolError
}

func Ok(v interface{}) Result { return Result{Value: v} }

func Fail(err *ToolError) Result { return Result{Err: err} }

func (r Result) IsError() bool { return r.Err != nil }

// JSON renders the result in the shape fed back to the model.
func (r Result) JSON() string {
	var payload interface{} = r.Value
	if r.Err != nil {
		payload = map[string]interface{}{
			"success": false,
			"kind":    r.Err.Kind,
			"error":   r.Err.Message,
		}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"kind":"internal","error":%q}`, err.Error())
	}
	return string(raw)
}

// classify turns a domain error into a tool error. Scope misses and genuine
// absence both surface as not_found.
func classify(err error) *ToolError {
	var te *ToolError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &te):
		return te
	case errors.Is(err, ErrNotFound), errors.Is(err, bulk.ErrSectionNotFound):
		return &ToolError{Kind: KindNotFound, Message: err.Error()}
	case errors.Is(err, ErrValidation),
		errors.Is(err, bulk.ErrEmptyFilter),
		errors.Is(err, bulk.ErrInvalidMutation),
		errors.Is(err, bulk.ErrUnknownOperation):
		return &ToolError{Kind: KindValidation, Message: err.Error()}
	default:
		return &ToolError{Kind: KindInternal, Message: err.Error()}
	}
}
