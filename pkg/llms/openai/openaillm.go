package openai

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/localagent/pkg/llms"
	"github.com/effective-security/localagent/pkg/llmutils"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// ErrEmptyResponse is returned when the API returns no choices.
var ErrEmptyResponse = errors.New("empty response")

type LLM struct {
	client openai.Client
	opts   *options
}

var _ llms.Model = (*LLM)(nil)

// New returns a new LLM for OpenAI compatible chat completions endpoint.
func New(opts ...Option) (*LLM, error) {
	o := newOptions(opts...)

	reqOpts := []option.RequestOption{
		option.WithAPIKey(o.token),
		option.WithBaseURL(strings.TrimSuffix(o.baseURL, "/") + "/"),
		// a failed round trip is reported to the caller
		option.WithMaxRetries(0),
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}
	if o.timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(o.timeout))
	}

	return &LLM{
		client: openai.NewClient(reqOpts...),
		opts:   o,
	}, nil
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderOpenAI
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.opts.model
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(options...)

	chatMsgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, mc := range messages {
		msg, err := messageFromMessage(mc)
		if err != nil {
			return nil, err
		}
		chatMsgs = append(chatMsgs, msg)
	}

	model := opts.Model
	if model == "" {
		model = o.opts.model
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: chatMsgs,
	}
	if opts.Temperature != 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.Seed != 0 {
		params.Seed = openai.Int(int64(opts.Seed))
	}
	if len(opts.StopWords) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: opts.StopWords}
	}

	for _, tool := range opts.Tools {
		t, err := toolFromTool(tool)
		if err != nil {
			return nil, err
		}
		params.Tools = append(params.Tools, t)
	}

	result, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create chat completion")
	}
	if len(result.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choices := make([]*llms.ContentChoice, len(result.Choices))
	for i, c := range result.Choices {
		choices[i] = &llms.ContentChoice{
			Content:    c.Message.Content,
			StopReason: string(c.FinishReason),
			GenerationInfo: map[string]any{
				"InputTokens":  result.Usage.PromptTokens,
				"OutputTokens": result.Usage.CompletionTokens,
				"TotalTokens":  result.Usage.TotalTokens,
			},
		}
		for _, tc := range c.Message.ToolCalls {
			choices[i].ToolCalls = append(choices[i].ToolCalls, llms.ToolCall{
				ID:   tc.ID,
				Type: string(tc.Type),
				FunctionCall: &llms.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
	}
	return &llms.ContentResponse{Choices: choices}, nil
}

func messageFromMessage(mc llms.Message) (openai.ChatCompletionMessageParamUnion, error) {
	switch mc.Role {
	case llms.RoleSystem:
		return openai.SystemMessage(mc.TextParts()), nil
	case llms.RoleHuman:
		return openai.UserMessage(mc.TextParts()), nil
	case llms.RoleAI:
		var calls []openai.ChatCompletionMessageToolCallUnionParam
		for _, p := range mc.Parts {
			if tc, ok := p.(llms.ToolCall); ok {
				calls = append(calls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name(),
							Arguments: string(llmutils.CleanJSON([]byte(tc.Arguments()))),
						},
					},
				})
			}
		}
		if len(calls) == 0 {
			return openai.AssistantMessage(mc.TextParts()), nil
		}
		msg := openai.ChatCompletionAssistantMessageParam{
			ToolCalls: calls,
		}
		if text := mc.TextParts(); text != "" {
			msg.Content.OfString = openai.String(text)
		}
		return openai.ChatCompletionMessageParamUnion{OfAssistant: &msg}, nil
	case llms.RoleTool:
		if len(mc.Parts) != 1 {
			return openai.ChatCompletionMessageParamUnion{}, errors.Newf("expected exactly one part for role %v, got %v", mc.Role, len(mc.Parts))
		}
		p, ok := mc.Parts[0].(llms.ToolCallResponse)
		if !ok {
			return openai.ChatCompletionMessageParamUnion{}, errors.Newf("expected part of type ToolCallResponse for role %v, got %T", mc.Role, mc.Parts[0])
		}
		return openai.ToolMessage(p.Content, p.ToolCallID), nil
	default:
		return openai.ChatCompletionMessageParamUnion{}, errors.Wrapf(llms.ErrUnexpectedRole, "role %v not supported", mc.Role)
	}
}

func toolFromTool(t llms.Tool) (openai.ChatCompletionToolUnionParam, error) {
	if t.Type != "function" || t.Function == nil {
		return openai.ChatCompletionToolUnionParam{}, errors.Newf("tool type %q is not supported", t.Type)
	}

	def := openai.FunctionDefinitionParam{
		Name:        t.Function.Name,
		Description: openai.String(t.Function.Description),
	}
	if t.Function.Strict {
		def.Strict = openai.Bool(true)
	}
	if t.Function.Parameters != nil {
		params := map[string]any{}
		if err := llmutils.Convert(t.Function.Parameters, &params); err != nil {
			return openai.ChatCompletionToolUnionParam{}, errors.Wrap(err, "failed to convert tool parameters")
		}
		def.Parameters = openai.FunctionParameters(params)
	}
	return openai.ChatCompletionFunctionTool(def), nil
}
