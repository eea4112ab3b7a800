package calculator

import (
	"context"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/localagent/pkg/schema"
	"github.com/effective-security/localagent/tools"
	"github.com/effective-security/localagent/tools/launcher"
	"github.com/invopop/jsonschema"
)

// ToolName is the name of the tool advertised to the model
const ToolName = "open_calculator"

// OpenedMessage is the tool output when the calculator is launched
const OpenedMessage = "Calculator app opened"

// Request represents the tool input, it has no fields.
type Request struct{}

// Result represents the tool output.
type Result struct {
	Message string           `json:"message" yaml:"Message"`
	Launch  *launcher.Result `json:"launch,omitempty" yaml:"Launch,omitempty"`
}

func (r *Result) String() string {
	return r.Message
}

// Tool opens the calculator application of the host platform
type Tool struct {
	name        string
	description string
	funcParams  *jsonschema.Schema

	opener *launcher.Opener
}

// ensure Tool implements the tools.Tool interface
var _ tools.Tool[Request, Result] = (*Tool)(nil)

func New(opener *launcher.Opener) (*Tool, error) {
	if opener == nil {
		return nil, errors.New("launcher is required")
	}
	sc, err := schema.NewStrict(reflect.TypeOf(Request{}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}
	return &Tool{
		name:        ToolName,
		description: "Open the calculator app",
		funcParams:  sc.Parameters,
		opener:      opener,
	}, nil
}

func (t *Tool) Name() string {
	return t.name
}

func (t *Tool) Description() string {
	return t.description
}

func (t *Tool) Parameters() *jsonschema.Schema {
	return t.funcParams
}

func (t *Tool) Run(ctx context.Context, _ *Request) (*Result, error) {
	res, err := t.opener.Open(ctx, launcher.AppCalculator)
	if err != nil {
		if errors.Is(err, launcher.ErrUnsupportedPlatform) {
			return &Result{Message: launcher.UnsupportedOSMessage}, nil
		}
		return nil, err
	}
	return &Result{
		Message: OpenedMessage,
		Launch:  res,
	}, nil
}

// Call opens the calculator, any argument is rejected.
func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	args, err := tools.ParseArguments(t.name, input)
	if err != nil {
		return "", err
	}
	if err = args.Strict(); err != nil {
		return "", err
	}

	res, err := t.Run(ctx, &Request{})
	if err != nil {
		return "", err
	}
	return res.String(), nil
}
