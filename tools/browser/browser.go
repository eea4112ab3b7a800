package browser

import (
	"context"
	"net/url"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/localagent/pkg/schema"
	"github.com/effective-security/localagent/tools"
	"github.com/effective-security/localagent/tools/launcher"
	"github.com/invopop/jsonschema"
)

const (
	// ToolName is the name of the tool advertised to the model
	ToolName = "open_chrome_with_claude"
	// DefaultAssistantURL is the page that receives the query
	DefaultAssistantURL = "https://claude.ai/new"
)

// Request represents the tool input.
type Request struct {
	Query string `json:"query" yaml:"Query" jsonschema:"title=query,description=The query to ask Claude AI" validate:"required"`
}

// Result represents the tool output.
type Result struct {
	Message string           `json:"message" yaml:"Message"`
	URL     string           `json:"url,omitempty" yaml:"URL,omitempty"`
	Launch  *launcher.Result `json:"launch,omitempty" yaml:"Launch,omitempty"`
}

func (r *Result) String() string {
	return r.Message
}

// EncodeQuery returns the query percent-encoded for URL query component,
// with spaces encoded as %20.
// Unlike JavaScript encodeURIComponent, the characters !'()* are escaped too,
// both forms decode to the same query.
func EncodeQuery(query string) string {
	return strings.ReplaceAll(url.QueryEscape(query), "+", "%20")
}

// AssistantURL returns the URL of the assistant page with the query
func AssistantURL(base, query string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrapf(err, "invalid assistant URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.Newf("invalid assistant URL: %q", base)
	}

	sep := "?"
	if u.RawQuery != "" {
		sep = "&"
	}
	return base + sep + "q=" + EncodeQuery(query), nil
}

// Tool opens Chrome on the assistant page with the query
type Tool struct {
	name        string
	description string
	funcParams  *jsonschema.Schema

	assistantURL string
	opener       *launcher.Opener
}

// ensure Tool implements the tools.Tool interface
var _ tools.Tool[Request, Result] = (*Tool)(nil)

func New(opener *launcher.Opener) (*Tool, error) {
	if opener == nil {
		return nil, errors.New("launcher is required")
	}
	sc, err := schema.New(reflect.TypeOf(Request{}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}
	return &Tool{
		name:         ToolName,
		description:  "Open Google Chrome and navigate to Claude AI with a specific query",
		funcParams:   sc.Parameters,
		assistantURL: DefaultAssistantURL,
		opener:       opener,
	}, nil
}

func (t *Tool) WithAssistantURL(assistantURL string) *Tool {
	if assistantURL != "" {
		t.assistantURL = assistantURL
	}
	return t
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

func (t *Tool) Run(ctx context.Context, req *Request) (*Result, error) {
	if err := tools.Validate(t.name, req); err != nil {
		return nil, err
	}

	target, err := AssistantURL(t.assistantURL, req.Query)
	if err != nil {
		return nil, err
	}

	res, err := t.opener.Open(ctx, launcher.AppBrowser, target)
	if err != nil {
		if errors.Is(err, launcher.ErrUnsupportedPlatform) {
			return &Result{Message: launcher.UnsupportedOSMessage}, nil
		}
		return nil, err
	}
	return &Result{
		Message: "Opened Chrome with Claude AI and query: " + req.Query,
		URL:     target,
		Launch:  res,
	}, nil
}

func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	args, err := tools.ParseArguments(t.name, input)
	if err != nil {
		return "", err
	}
	query, err := args.String("query")
	if err != nil {
		return "", err
	}

	res, err := t.Run(ctx, &Request{Query: query})
	if err != nil {
		return "", err
	}
	return res.String(), nil
}
