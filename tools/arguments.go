package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/localagent/pkg/llmutils"
)

// Arguments are the loosely typed arguments of a tool call,
// as decoded from the JSON object produced by the model.
type Arguments struct {
	Tool   string
	Values map[string]any
}

// ParseArguments decodes the tool call input.
// Empty input is treated as an empty object.
func ParseArguments(tool, input string) (*Arguments, error) {
	args := &Arguments{
		Tool:   tool,
		Values: map[string]any{},
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return args, nil
	}

	if err := json.Unmarshal(llmutils.CleanJSON([]byte(input)), &args.Values); err != nil {
		return nil, errors.WithStack(ErrFailedUnmarshalInput)
	}
	if args.Values == nil {
		// "null"
		args.Values = map[string]any{}
	}
	return args, nil
}

// Has returns true if the argument is present
func (a *Arguments) Has(name string) bool {
	_, ok := a.Values[name]
	return ok
}

// Float returns a required numeric argument.
// JSON numbers and numeric strings are accepted,
// NaN and infinite values are rejected.
func (a *Arguments) Float(name string) (float64, error) {
	v, ok := a.Values[name]
	if !ok {
		return 0, a.invalid(name, "is required")
	}

	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, a.invalid(name, fmt.Sprintf("expected a number, got %q", x.String()))
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, a.invalid(name, fmt.Sprintf("expected a number, got %q", x))
		}
		f = n
	default:
		return 0, a.invalid(name, "expected a number, got "+kindOf(v))
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, a.invalid(name, "must be a finite number")
	}
	return f, nil
}

// String returns a required string argument.
func (a *Arguments) String(name string) (string, error) {
	v, ok := a.Values[name]
	if !ok {
		return "", a.invalid(name, "is required")
	}
	s, ok := v.(string)
	if !ok {
		return "", a.invalid(name, "expected a string, got "+kindOf(v))
	}
	return s, nil
}

// Strict returns an error if the arguments contain a field not in the allowed list.
func (a *Arguments) Strict(allowed ...string) error {
	var unexpected []string
	for name := range a.Values {
		found := false
		for _, al := range allowed {
			if name == al {
				found = true
				break
			}
		}
		if !found {
			unexpected = append(unexpected, name)
		}
	}
	if len(unexpected) == 0 {
		return nil
	}
	sort.Strings(unexpected)
	return a.invalid(unexpected[0], "unexpected field")
}

func (a *Arguments) invalid(field, reason string) error {
	return &ArgumentError{
		Tool:   a.Tool,
		Field:  field,
		Reason: reason,
	}
}

// kindOf returns JSON type name of the decoded value
func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
