package ollamaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/slices"
)

const (
	DefaultBaseURL   = "http://localhost:11434"
	DefaultChatModel = "llama3.1"
)

// ErrEmptyResponse is returned when the Ollama API returns an empty response.
var ErrEmptyResponse = errors.New("empty response")

// Doer performs a HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the Ollama native API.
type Client struct {
	Model string

	baseURL    string
	httpClient Doer
}

// New returns a new Ollama client.
func New(model string, baseURL string, httpClient Doer) *Client {
	c := &Client{
		Model:      model,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultChatModel
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	return c
}

// BaseURL returns the server URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Message is a chat message.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolName is the name of the tool for the tool role
	ToolName string `json:"tool_name,omitempty"`
}

// ToolCall is a tool call requested by the model.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Function FunctionCall `json:"function"`
}

// FunctionCall is the function of the tool call,
// Arguments is a JSON object.
type FunctionCall struct {
	Index     int             `json:"index,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Tool is a tool definition.
type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition is a function the model may call.
type FunctionDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// Options are the model runtime options.
type Options struct {
	Temperature float64  `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Seed        int      `json:"seed,omitempty"`
}

// ChatRequest is a request to the chat endpoint.
type ChatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	Tools     []Tool    `json:"tools,omitempty"`
	Format    any       `json:"format,omitempty"`
	Options   *Options  `json:"options,omitempty"`
	KeepAlive string    `json:"keep_alive,omitempty"`
	Stream    bool      `json:"stream"`
}

// ChatResponse is a non-streaming response of the chat endpoint.
type ChatResponse struct {
	Model      string  `json:"model"`
	CreatedAt  string  `json:"created_at"`
	Message    Message `json:"message"`
	Done       bool    `json:"done"`
	DoneReason string  `json:"done_reason,omitempty"`

	TotalDuration   int64 `json:"total_duration,omitempty"`
	LoadDuration    int64 `json:"load_duration,omitempty"`
	PromptEvalCount int   `json:"prompt_eval_count,omitempty"`
	EvalCount       int   `json:"eval_count,omitempty"`
}

type errorMessage struct {
	Error string `json:"error"`
}

// CreateChat sends the chat request and waits for the complete response.
func (c *Client) CreateChat(ctx context.Context, r *ChatRequest) (*ChatResponse, error) {
	if r.Model == "" {
		r.Model = c.Model
	}
	// streaming is not supported
	r.Stream = false

	payload, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal chat request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send chat request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read chat response")
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("API returned unexpected status code: %d", resp.StatusCode)

		var errResp errorMessage
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return nil, errors.Newf("%s: %s", msg, errResp.Error)
		}
		if text := strings.TrimSpace(string(body)); text != "" {
			return nil, errors.Newf("%s: %s", msg, slices.StringUpto(text, 256))
		}
		return nil, errors.New(msg)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyResponse
	}

	var chat ChatResponse
	if err = json.Unmarshal(body, &chat); err != nil {
		return nil, errors.Wrap(err, "failed to decode chat response")
	}
	if chat.Message.Content == "" && len(chat.Message.ToolCalls) == 0 && chat.Message.Role == "" {
		return nil, ErrEmptyResponse
	}
	return &chat, nil
}
