package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/localagent/pkg/llms"
	"github.com/effective-security/localagent/pkg/llms/ollama/internal/ollamaclient"
	"github.com/effective-security/localagent/pkg/llmutils"
)

const (
	RoleSystem    = "system"
	RoleAssistant = "assistant"
	RoleUser      = "user"
	RoleTool      = "tool"
)

// ErrEmptyResponse is returned when the Ollama server returns an empty response.
var ErrEmptyResponse = ollamaclient.ErrEmptyResponse

type LLM struct {
	client *ollamaclient.Client
	opts   *options
}

var _ llms.Model = (*LLM)(nil)

// New returns a new Ollama LLM.
func New(opts ...Option) (*LLM, error) {
	o := newOptions(opts...)
	if !strings.HasPrefix(o.baseURL, "http://") && !strings.HasPrefix(o.baseURL, "https://") {
		return nil, errors.Newf("invalid Ollama server URL: %q", o.baseURL)
	}
	return &LLM{
		client: ollamaclient.New(o.model, o.baseURL, o.httpClient),
		opts:   o,
	}, nil
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderOllama
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.client.Model
}

// GenerateContent implements the Model interface.
// It performs a single non-streaming round trip to the chat endpoint.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(options...)

	chatMsgs := make([]ollamaclient.Message, 0, len(messages))
	for _, mc := range messages {
		msg, err := messageFromMessage(mc)
		if err != nil {
			return nil, err
		}
		chatMsgs = append(chatMsgs, msg)
	}

	req := &ollamaclient.ChatRequest{
		Model:     opts.Model,
		Messages:  chatMsgs,
		KeepAlive: o.opts.keepAlive,
	}
	if opts.Temperature != 0 || opts.MaxTokens != 0 || len(opts.StopWords) > 0 || opts.Seed != 0 {
		req.Options = &ollamaclient.Options{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
			Stop:        opts.StopWords,
			Seed:        opts.Seed,
		}
	}
	if format, ok := opts.Metadata["format"]; ok {
		req.Format = format
	}

	for _, tool := range opts.Tools {
		if tool.Function == nil {
			return nil, errors.Newf("tool type %q is not supported", tool.Type)
		}
		req.Tools = append(req.Tools, ollamaclient.Tool{
			Type: "function",
			Function: ollamaclient.FunctionDefinition{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			},
		})
	}

	if o.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.timeout)
		defer cancel()
	}

	result, err := o.client.CreateChat(ctx, req)
	if err != nil {
		return nil, err
	}

	choice := &llms.ContentChoice{
		Content:    result.Message.Content,
		StopReason: result.DoneReason,
		GenerationInfo: map[string]any{
			"InputTokens":  result.PromptEvalCount,
			"OutputTokens": result.EvalCount,
			"TotalTokens":  result.PromptEvalCount + result.EvalCount,
		},
	}

	for i, tc := range result.Message.ToolCalls {
		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("%s_%d", tc.Function.Name, i)
		}
		choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
			ID:   id,
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: argumentsText(tc.Function.Arguments),
			},
		})
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{choice},
	}, nil
}

func messageFromMessage(mc llms.Message) (ollamaclient.Message, error) {
	msg := ollamaclient.Message{}
	switch mc.Role {
	case llms.RoleSystem:
		msg.Role = RoleSystem
	case llms.RoleAI:
		msg.Role = RoleAssistant
	case llms.RoleHuman:
		msg.Role = RoleUser
	case llms.RoleTool:
		msg.Role = RoleTool
	default:
		return msg, errors.Wrapf(llms.ErrUnexpectedRole, "role %v not supported", mc.Role)
	}

	var text []string
	for _, part := range mc.Parts {
		switch p := part.(type) {
		case llms.TextContent:
			text = append(text, p.Text)
		case llms.ToolCall:
			args := json.RawMessage(llmutils.CleanJSON([]byte(p.Arguments())))
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			if !json.Valid(args) {
				return msg, errors.Newf("invalid arguments of tool call %s", p.ID)
			}
			msg.ToolCalls = append(msg.ToolCalls, ollamaclient.ToolCall{
				ID: p.ID,
				Function: ollamaclient.FunctionCall{
					Name:      p.Name(),
					Arguments: args,
				},
			})
		case llms.ToolCallResponse:
			msg.ToolName = p.Name
			text = append(text, p.Content)
		default:
			return msg, errors.Newf("content part %T is not supported", part)
		}
	}
	msg.Content = strings.Join(text, "\n")
	return msg, nil
}

// argumentsText returns arguments as JSON text,
// some models return the arguments object encoded as a string.
func argumentsText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "{}"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
