package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/localagent/pkg/llms"
	"github.com/effective-security/localagent/pkg/llmutils"
	"github.com/effective-security/localagent/pkg/metricskey"
	"github.com/effective-security/localagent/pkg/runctx"
	"github.com/effective-security/localagent/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/localagent", "orchestrator")

// DefaultPrompt is the prompt used when none is provided
const DefaultPrompt = "What's the current weather in San Francisco? Also, can you open the calculator app? Lastly, open Chrome and ask Claude 'What is the capital of France?'"

// Option configures the Orchestrator
type Option func(*Orchestrator)

// WithCallback sets the callback handler of the run events
func WithCallback(cb Callback) Option {
	return func(o *Orchestrator) {
		o.callback = cb
	}
}

// WithCallOptions adds options to the model call
func WithCallOptions(opts ...llms.CallOption) Option {
	return func(o *Orchestrator) {
		o.callOpts = append(o.callOpts, opts...)
	}
}

// Orchestrator invokes the model once and dispatches the requested tool calls
type Orchestrator struct {
	llm      llms.Model
	registry *tools.Registry
	callback Callback
	callOpts []llms.CallOption
}

// New returns Orchestrator for the model and the registered tools
func New(llm llms.Model, registry *tools.Registry, opts ...Option) (*Orchestrator, error) {
	if llm == nil {
		return nil, errors.New("model is required")
	}
	if !llm.GetProviderType().Supports(llms.CapabilityFunctionCalling) {
		return nil, errors.Newf("provider %q does not support tool calling", llm.GetProviderType())
	}
	if registry == nil || registry.Len() == 0 {
		return nil, errors.New("at least one tool is required")
	}
	o := &Orchestrator{
		llm:      llm,
		registry: registry,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run sends the prompt to the model, and executes the tool calls of the response.
// An empty prompt is replaced with DefaultPrompt.
// The error is returned only when the model call fails,
// the tool errors are reported in the results.
func (o *Orchestrator) Run(ctx context.Context, prompt string) (*Report, error) {
	ctx, runCtx := runctx.Ensure(ctx)
	prompt = values.StringsCoalesce(prompt, DefaultPrompt)

	report := &Report{
		RunID:  runCtx.RunID(),
		Prompt: prompt,
		Model:  o.llm.GetName(),
	}
	started := time.Now()

	if o.callback != nil {
		o.callback.OnRunStart(ctx, prompt)
	}

	resp, err := o.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	report.Response = resp
	if len(resp.Choices) > 0 {
		report.Content = resp.Choices[0].Content
	}

	calls := resp.ToolCalls()
	logger.ContextKV(ctx, xlog.INFO,
		"status", "model_response",
		"run_id", report.RunID,
		"model", report.Model,
		"content", slices.StringUpto(report.Content, 256),
		"tool_calls", len(calls),
	)
	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "raw_response",
		"response", llmutils.ToJSON(resp),
	)

	for i, call := range calls {
		if call.ID == "" {
			call.ID = fmt.Sprintf("%s_%d", call.Name(), i)
		}
		call.Type = values.StringsCoalesce(call.Type, "function")
		report.Results = append(report.Results, o.dispatch(ctx, call))
	}

	report.Duration = time.Since(started)
	if o.callback != nil {
		o.callback.OnRunEnd(ctx, report)
	}
	return report, nil
}

func (o *Orchestrator) generate(ctx context.Context, prompt string) (*llms.ContentResponse, error) {
	providerName := string(o.llm.GetProviderType())
	modelName := o.llm.GetName()

	messages := []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, prompt),
	}
	callOpts := append([]llms.CallOption{llms.WithTools(o.registry.Definitions())}, o.callOpts...)

	if o.callback != nil {
		o.callback.OnLLMCallStart(ctx, o.llm, messages)
	}

	bytesSent := llmutils.CountMessagesContentSize(messages)
	metricskey.StatsLLMBytesSent.IncrCounter(float64(bytesSent), providerName, modelName)

	started := time.Now()
	resp, err := o.llm.GenerateContent(ctx, messages, callOpts...)
	metricskey.PerfLLMCall.MeasureSince(started, providerName, modelName)
	if err != nil {
		metricskey.StatsLLMCallsFailed.IncrCounter(1, providerName, modelName)
		if o.callback != nil {
			o.callback.OnLLMError(ctx, o.llm, err)
		}
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "model_call_failed",
			"provider", providerName,
			"model", modelName,
			"err", err.Error(),
		)
		return nil, errors.Wrap(err, "failed to generate content from LLM")
	}

	if o.callback != nil {
		o.callback.OnLLMCallEnd(ctx, o.llm, resp)
	}

	bytesReceived := llmutils.CountResponseContentSize(resp)
	metricskey.StatsLLMBytesReceived.IncrCounter(float64(bytesReceived), providerName, modelName)

	tokensIn, tokensOut, _ := llmutils.CountTokens(resp)
	metricskey.StatsLLMInputTokens.IncrCounter(float64(tokensIn), providerName, modelName)
	metricskey.StatsLLMOutputTokens.IncrCounter(float64(tokensOut), providerName, modelName)

	return resp, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, call llms.ToolCall) *ToolResult {
	res := &ToolResult{Call: call}
	toolName := call.Name()
	toolArgs := call.Arguments()

	tool, ok := o.registry.Find(toolName)
	if !ok {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, toolName)
		if o.callback != nil {
			o.callback.OnToolNotFound(ctx, call)
		}
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "tool_not_found",
			"tool_call_id", call.ID,
			"tool_name", toolName,
		)
		res.Skipped = true
		return res
	}

	if o.callback != nil {
		o.callback.OnToolStart(ctx, tool, toolArgs)
	}

	started := time.Now()
	output, err := tool.Call(ctx, toolArgs)
	metricskey.PerfToolCall.MeasureSince(started, tool.Name())

	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, tool.Name())
		if o.callback != nil {
			o.callback.OnToolError(ctx, tool, toolArgs, err)
		}
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "tool_call_failed",
			"tool_call_id", call.ID,
			"tool_name", tool.Name(),
			"err", err.Error(),
		)
		res.Err = errors.WithMessagef(err, "failed to call tool %s", tool.Name())
		res.Error = res.Err.Error()
		return res
	}

	metricskey.StatsToolCallsSucceeded.IncrCounter(1, tool.Name())
	if o.callback != nil {
		o.callback.OnToolEnd(ctx, tool, toolArgs, output)
	}
	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "tool_call_succeeded",
		"tool_call_id", call.ID,
		"tool_name", tool.Name(),
		"output", slices.StringUpto(output, 256),
	)

	res.Output = output
	return res
}
