package ollama

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/effective-security/localagent/pkg/llms/ollama/internal/ollamaclient"
	"github.com/effective-security/x/values"
)

const (
	hostEnvVarName  = "OLLAMA_HOST"
	modelEnvVarName = "OLLAMA_MODEL"
)

const (
	// DefaultBaseURL is the local Ollama server
	DefaultBaseURL = ollamaclient.DefaultBaseURL
	// DefaultModel is the model used when none is configured
	DefaultModel = ollamaclient.DefaultChatModel
)

type options struct {
	model      string
	baseURL    string
	httpClient ollamaclient.Doer
	timeout    time.Duration
	keepAlive  string
}

// Option is a functional option for the Ollama client.
type Option func(*options)

// WithModel sets the model to use. If not set, the model
// is read from the OLLAMA_MODEL environment variable,
// and defaults to llama3.1.
func WithModel(model string) Option {
	return func(opts *options) {
		opts.model = model
	}
}

// WithServerURL sets the URL of the Ollama server. If not set, the URL
// is read from the OLLAMA_HOST environment variable,
// and defaults to http://localhost:11434.
func WithServerURL(baseURL string) Option {
	return func(opts *options) {
		opts.baseURL = baseURL
	}
}

// WithHTTPClient allows setting a custom HTTP client.
func WithHTTPClient(client ollamaclient.Doer) Option {
	return func(opts *options) {
		opts.httpClient = client
	}
}

// WithTimeout sets the timeout of a single chat request.
// Zero means no timeout, which is the default as local models can be slow to load.
func WithTimeout(timeout time.Duration) Option {
	return func(opts *options) {
		opts.timeout = timeout
	}
}

// WithKeepAlive controls how long the model stays loaded after the request,
// for example "5m".
func WithKeepAlive(keepAlive string) Option {
	return func(opts *options) {
		opts.keepAlive = keepAlive
	}
}

func newOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	o.model = values.StringsCoalesce(o.model, os.Getenv(modelEnvVarName), DefaultModel)
	o.baseURL = values.StringsCoalesce(o.baseURL, hostURL(os.Getenv(hostEnvVarName)), DefaultBaseURL)
	if o.httpClient == nil {
		o.httpClient = http.DefaultClient
	}
	return o
}

// hostURL returns the URL from OLLAMA_HOST, which may omit the scheme
func hostURL(host string) string {
	if host == "" {
		return ""
	}
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "http://" + host
}
