package tools

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrFailedUnmarshalInput is returned when the tool input is not a JSON object
	ErrFailedUnmarshalInput = errors.New("failed to unmarshal input: check the schema and try again")
	// ErrInvalidArgument is matched by every *ArgumentError
	ErrInvalidArgument = errors.New("invalid argument")
)

// ArgumentError describes a tool argument that could not be coerced
// to the type declared by the tool, or failed validation.
type ArgumentError struct {
	Tool   string
	Field  string
	Reason string
}

func (e *ArgumentError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Reason)
	}
	return fmt.Sprintf("invalid argument %q for %s: %s", e.Field, e.Tool, e.Reason)
}

// Unwrap returns ErrInvalidArgument, so errors.Is can match any argument error.
func (e *ArgumentError) Unwrap() error {
	return ErrInvalidArgument
}
