package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"ai-notetaking-agent/pkg/llm"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Handler is the registry-facing side of a tool.
type Handler interface {
	Name() ToolName
	Definition() llm.ToolDefinition
	Execute(ctx context.Context, userId uuid.UUID, arguments string) Result
}

// checker lets argument structs add rules a struct tag cannot express.
type checker interface {
	Check() error
}

// typedHandler binds a tool name to a function with concrete argument and
// result types. Decoding and validation happen once, here.
type typedHandler[A any, R any] struct {
	name        ToolName
	description string
	schema      string
	validate    *validator.Validate
	fn          func(ctx context.Context, userId uuid.UUID, args A) (R, error)
}

func newHandler[A any, R any](
	v *validator.Validate,
	name ToolName,
	description, schema string,
	fn func(ctx context.Context, userId uuid.UUID, args A) (R, error),
) Handler {
	return &typedHandler[A, R]{name: name, description: description, schema: schema, validate: v, fn: fn}
}

func (h *typedHandler[A, R]) Name() ToolName { return h.name }

func (h *typedHandler[A, R]) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        string(h.name),
		Description: h.description,
		Parameters:  json.RawMessage(h.schema),
	}
}

func (h *typedHandler[A, R]) Execute(ctx context.Context, userId uuid.UUID, arguments string) Result {
	args, terr := DecodeArguments[A](h.validate, arguments)
	if terr != nil {
		return Fail(terr)
	}
	value, err := h.fn(ctx, userId, args)
	if err != nil {
		return Fail(classify(err))
	}
	return Ok(value)
}

// DecodeArguments parses untrusted model JSON into A and validates it.
// Blank input decodes as an empty object.
func DecodeArguments[A any](v *validator.Validate, arguments string) (A, *ToolError) {
	var args A
	raw := bytes.TrimSpace([]byte(arguments))
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return args, NewToolError(KindInvalidArguments, "arguments are not valid JSON for this tool: %v", err)
	}
	if v != nil {
		if err := v.Struct(&args); err != nil {
			var invalid *validator.InvalidValidationError
			if !errors.As(err, &invalid) {
				return args, NewToolError(KindInvalidArguments, "%s", describeValidation(err))
			}
		}
	}
	if c, ok := any(&args).(checker); ok {
		if err := c.Check(); err != nil {
			return args, NewToolError(KindInvalidArguments, "%v", err)
		}
	}
	return args, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return "invalid arguments: " + strings.Join(parts, ", ")
}

// NewValidator returns a validator that reports json field names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}
