package orchestrator

import (
	"context"

	"github.com/effective-security/localagent/pkg/llms"
	"github.com/effective-security/localagent/tools"
)

// Callback receives the events of the run
type Callback interface {
	tools.Callback

	OnRunStart(ctx context.Context, prompt string)
	OnRunEnd(ctx context.Context, report *Report)
	OnLLMCallStart(ctx context.Context, llm llms.Model, payload []llms.Message)
	OnLLMCallEnd(ctx context.Context, llm llms.Model, resp *llms.ContentResponse)
	OnLLMError(ctx context.Context, llm llms.Model, err error)
	OnToolNotFound(ctx context.Context, call llms.ToolCall)
}
