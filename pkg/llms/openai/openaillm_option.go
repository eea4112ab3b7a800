package openai

import (
	"net/http"
	"os"
	"time"

	"github.com/effective-security/x/values"
)

const (
	tokenEnvVarName   = "OPENAI_API_KEY"  //nolint:gosec
	modelEnvVarName   = "OPENAI_MODEL"    //nolint:gosec
	baseURLEnvVarName = "OPENAI_BASE_URL" //nolint:gosec
)

const (
	// DefaultBaseURL is the OpenAI compatible endpoint of the local Ollama server
	DefaultBaseURL = "http://localhost:11434/v1"
	// DefaultModel is the model used when none is configured
	DefaultModel = "llama3.1"
	// localToken is sent when no token is configured, local servers ignore it
	localToken = "ollama"
)

type options struct {
	token      string
	model      string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// Option is a functional option for the OpenAI client.
type Option func(*options)

// WithToken passes the API token to the client. If not set, the token
// is read from the OPENAI_API_KEY environment variable.
func WithToken(token string) Option {
	return func(opts *options) {
		opts.token = token
	}
}

// WithModel passes the model to the client. If not set, the model
// is read from the OPENAI_MODEL environment variable.
func WithModel(model string) Option {
	return func(opts *options) {
		opts.model = model
	}
}

// WithBaseURL passes the base url to the client. If not set, the base url
// is read from the OPENAI_BASE_URL environment variable,
// and defaults to the OpenAI compatible endpoint of a local Ollama server.
func WithBaseURL(baseURL string) Option {
	return func(opts *options) {
		opts.baseURL = baseURL
	}
}

// WithHTTPClient allows setting a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *options) {
		opts.httpClient = client
	}
}

// WithTimeout sets the timeout of a single request, zero means no timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(opts *options) {
		opts.timeout = timeout
	}
}

func newOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	o.token = values.StringsCoalesce(o.token, os.Getenv(tokenEnvVarName), localToken)
	o.model = values.StringsCoalesce(o.model, os.Getenv(modelEnvVarName), DefaultModel)
	o.baseURL = values.StringsCoalesce(o.baseURL, os.Getenv(baseURLEnvVarName), DefaultBaseURL)
	return o
}
