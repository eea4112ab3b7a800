package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/localagent/pkg/llms"
	"github.com/effective-security/localagent/pkg/llms/ollama"
	"github.com/effective-security/localagent/pkg/llmutils"
	"github.com/effective-security/localagent/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const toolCallsResponse = `{
	"model": "llama3.1",
	"created_at": "2024-08-01T10:00:00.000000Z",
	"message": {
		"role": "assistant",
		"content": "",
		"tool_calls": [
			{"function": {"name": "get_current_weather", "arguments": {"latitude": 37.77, "longitude": -122.42}}},
			{"function": {"name": "open_calculator", "arguments": {}}},
			{"function": {"name": "open_chrome_with_claude", "arguments": "{\"query\":\"What is the capital of France?\"}"}}
		]
	},
	"done_reason": "stop",
	"done": true,
	"total_duration": 4883583458,
	"prompt_eval_count": 321,
	"eval_count": 58
}`

type chatRequest struct {
	Model    string           `json:"model"`
	Messages []map[string]any `json:"messages"`
	Tools    []map[string]any `json:"tools"`
	Options  map[string]any   `json:"options"`
	Stream   *bool            `json:"stream"`
}

func Test_GenerateContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		assert.Equal(t, "llama3.1", req.Model)
		if !assert.NotNil(t, req.Stream) || !assert.Len(t, req.Messages, 2) || !assert.Len(t, req.Tools, 1) {
			return
		}
		assert.False(t, *req.Stream)
		assert.Equal(t, "system", req.Messages[0]["role"])
		assert.Equal(t, "user", req.Messages[1]["role"])
		assert.Equal(t, "What's the weather?", req.Messages[1]["content"])
		assert.Equal(t, "function", req.Tools[0]["type"])
		fn := req.Tools[0]["function"].(map[string]any)
		assert.Equal(t, "get_current_weather", fn["name"])
		assert.Equal(t, "object", fn["parameters"].(map[string]any)["type"])
		assert.Equal(t, 0.1, req.Options["temperature"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(toolCallsResponse))
	}))
	defer server.Close()

	llm, err := ollama.New(ollama.WithServerURL(server.URL+"/"), ollama.WithHTTPClient(server.Client()), ollama.WithTimeout(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, llms.ProviderOllama, llm.GetProviderType())
	assert.Equal(t, "llama3.1", llm.GetName())

	params, err := schema.FromAny(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"latitude":  map[string]any{"type": "number"},
			"longitude": map[string]any{"type": "number"},
		},
	})
	require.NoError(t, err)

	tool := llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        "get_current_weather",
			Description: "Get the current weather for a given city",
			Parameters:  params,
		},
	}

	resp, err := llm.GenerateContent(context.Background(),
		[]llms.Message{
			llms.MessageFromTextParts(llms.RoleSystem, "You are a helpful assistant."),
			llms.MessageFromTextParts(llms.RoleHuman, "What's the weather?"),
		},
		llms.WithTools([]llms.Tool{tool}),
		llms.WithTemperature(0.1),
	)
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)

	choice := resp.Choices[0]
	assert.Equal(t, "stop", choice.StopReason)
	assert.Equal(t, 321, choice.GenerationInfo["InputTokens"])
	assert.Equal(t, 58, choice.GenerationInfo["OutputTokens"])
	assert.Equal(t, 379, choice.GenerationInfo["TotalTokens"])

	calls := resp.ToolCalls()
	require.Len(t, calls, 3)
	assert.Equal(t, "get_current_weather_0", calls[0].ID)
	assert.Equal(t, "function", calls[0].Type)
	assert.Equal(t, "get_current_weather", calls[0].Name())
	assert.JSONEq(t, `{"latitude":37.77,"longitude":-122.42}`, calls[0].Arguments())
	assert.Equal(t, "open_calculator_1", calls[1].ID)
	assert.Equal(t, "{}", calls[1].Arguments())
	assert.Equal(t, "open_chrome_with_claude", calls[2].Name())
	assert.Equal(t, `{"query":"What is the capital of France?"}`, calls[2].Arguments())

	in, out, total := llmutils.CountTokens(resp)
	assert.Equal(t, int64(321), in)
	assert.Equal(t, int64(58), out)
	assert.Equal(t, int64(379), total)
}

func Test_GenerateContent_History(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen2.5", req.Model)
		if !assert.Len(t, req.Messages, 3) {
			return
		}

		assistant := req.Messages[1]
		assert.Equal(t, "assistant", assistant["role"])
		calls := assistant["tool_calls"].([]any)
		if !assert.Len(t, calls, 1) {
			return
		}
		fn := calls[0].(map[string]any)["function"].(map[string]any)
		assert.Equal(t, "open_calculator", fn["name"])
		assert.Equal(t, map[string]any{}, fn["arguments"])

		toolMsg := req.Messages[2]
		assert.Equal(t, "tool", toolMsg["role"])
		assert.Equal(t, "open_calculator", toolMsg["tool_name"])
		assert.Equal(t, "Calculator app opened", toolMsg["content"])

		_, _ = w.Write([]byte(`{"model":"qwen2.5","message":{"role":"assistant","content":"Done."},"done":true,"done_reason":"stop"}`))
	}))
	defer server.Close()

	llm, err := ollama.New(ollama.WithServerURL(server.URL), ollama.WithModel("qwen2.5"))
	require.NoError(t, err)

	resp, err := llm.GenerateContent(context.Background(), []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, "open the calculator"),
		llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{
			ID:           "open_calculator_0",
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: "open_calculator"},
		}),
		llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: "open_calculator_0",
			Name:       "open_calculator",
			Content:    "Calculator app opened",
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, "Done.", resp.Choices[0].Content)
	assert.Empty(t, resp.ToolCalls())
}

func Test_GenerateContent_Errors(t *testing.T) {
	ctx := context.Background()
	msgs := []llms.Message{llms.MessageFromTextParts(llms.RoleHuman, "hi")}

	t.Run("model_not_found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"model \"llama3.1\" not found, try pulling it first"}`))
		}))
		defer server.Close()

		llm, err := ollama.New(ollama.WithServerURL(server.URL))
		require.NoError(t, err)
		_, err = llm.GenerateContent(ctx, msgs)
		assert.EqualError(t, err, `API returned unexpected status code: 404: model "llama3.1" not found, try pulling it first`)
	})

	t.Run("status_text", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		llm, err := ollama.New(ollama.WithServerURL(server.URL))
		require.NoError(t, err)
		_, err = llm.GenerateContent(ctx, msgs)
		assert.EqualError(t, err, `API returned unexpected status code: 500`)
	})

	t.Run("empty", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		llm, err := ollama.New(ollama.WithServerURL(server.URL))
		require.NoError(t, err)
		_, err = llm.GenerateContent(ctx, msgs)
		assert.True(t, errors.Is(err, ollama.ErrEmptyResponse))

		_, err = llm.GenerateContent(ctx, msgs)
		assert.EqualError(t, err, "empty response")
	})

	t.Run("connection", func(t *testing.T) {
		llm, err := ollama.New(ollama.WithServerURL("http://127.0.0.1:1"))
		require.NoError(t, err)
		_, err = llm.GenerateContent(ctx, msgs)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to send chat request")
	})

	t.Run("role", func(t *testing.T) {
		llm, err := ollama.New()
		require.NoError(t, err)
		_, err = llm.GenerateContent(ctx, []llms.Message{llms.MessageFromTextParts("generic", "hi")})
		assert.True(t, errors.Is(err, llms.ErrUnexpectedRole))
	})

	t.Run("url", func(t *testing.T) {
		_, err := ollama.New(ollama.WithServerURL("localhost:11434"))
		assert.EqualError(t, err, `invalid Ollama server URL: "localhost:11434"`)
	})
}

func Test_Environment(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "127.0.0.1:11500")
	t.Setenv("OLLAMA_MODEL", "mistral")

	llm, err := ollama.New()
	require.NoError(t, err)
	assert.Equal(t, "mistral", llm.GetName())

	llm, err = ollama.New(ollama.WithModel("llama3.1"))
	require.NoError(t, err)
	assert.Equal(t, "llama3.1", llm.GetName())
}
