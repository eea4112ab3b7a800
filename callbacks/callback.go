package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/effective-security/localagent/orchestrator"
	"github.com/effective-security/localagent/pkg/llms"
	"github.com/effective-security/localagent/pkg/llmutils"
	"github.com/effective-security/localagent/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

// ensure that the callbacks implement the correct interfaces
var (
	_ orchestrator.Callback = (*Noop)(nil)
	_ orchestrator.Callback = (*Printer)(nil)
	_ orchestrator.Callback = (*PackageLogger)(nil)
	_ orchestrator.Callback = (*Fanout)(nil)
	_ orchestrator.Callback = (*Scratchpad)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault is the default mode for callback printing
	ModeDefault Mode = iota
	// ModeVerbose is the verbose mode for callback printing
	ModeVerbose
)

// Fanout is a callback handler that forwards the events to multiple callbacks.
type Fanout struct {
	callbacks []orchestrator.Callback
}

func NewFanout(callbacks ...orchestrator.Callback) *Fanout {
	return &Fanout{callbacks: callbacks}
}

func (l *Fanout) Add(callback orchestrator.Callback) {
	l.callbacks = append(l.callbacks, callback)
}

func (l *Fanout) OnRunStart(ctx context.Context, prompt string) {
	for _, callback := range l.callbacks {
		callback.OnRunStart(ctx, prompt)
	}
}

func (l *Fanout) OnRunEnd(ctx context.Context, report *orchestrator.Report) {
	for _, callback := range l.callbacks {
		callback.OnRunEnd(ctx, report)
	}
}

func (l *Fanout) OnLLMCallStart(ctx context.Context, llm llms.Model, payload []llms.Message) {
	for _, callback := range l.callbacks {
		callback.OnLLMCallStart(ctx, llm, payload)
	}
}

func (l *Fanout) OnLLMCallEnd(ctx context.Context, llm llms.Model, resp *llms.ContentResponse) {
	for _, callback := range l.callbacks {
		callback.OnLLMCallEnd(ctx, llm, resp)
	}
}

func (l *Fanout) OnLLMError(ctx context.Context, llm llms.Model, err error) {
	for _, callback := range l.callbacks {
		callback.OnLLMError(ctx, llm, err)
	}
}

func (l *Fanout) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	for _, callback := range l.callbacks {
		callback.OnToolStart(ctx, tool, input)
	}
}

func (l *Fanout) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
	for _, callback := range l.callbacks {
		callback.OnToolEnd(ctx, tool, input, output)
	}
}

func (l *Fanout) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	for _, callback := range l.callbacks {
		callback.OnToolError(ctx, tool, input, err)
	}
}

func (l *Fanout) OnToolNotFound(ctx context.Context, call llms.ToolCall) {
	for _, callback := range l.callbacks {
		callback.OnToolNotFound(ctx, call)
	}
}

// Noop does nothing.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (l *Noop) OnRunStart(ctx context.Context, prompt string)                                {}
func (l *Noop) OnRunEnd(ctx context.Context, report *orchestrator.Report)                    {}
func (l *Noop) OnLLMCallStart(ctx context.Context, llm llms.Model, payload []llms.Message)   {}
func (l *Noop) OnLLMCallEnd(ctx context.Context, llm llms.Model, resp *llms.ContentResponse) {}
func (l *Noop) OnLLMError(ctx context.Context, llm llms.Model, err error)                    {}
func (l *Noop) OnToolStart(ctx context.Context, tool tools.ITool, input string)              {}
func (l *Noop) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
}
func (l *Noop) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {}
func (l *Noop) OnToolNotFound(ctx context.Context, call llms.ToolCall)                     {}

// Printer is a callback handler that prints to the Writer.
type Printer struct {
	Out  io.Writer
	Mode Mode

	lock sync.Mutex
}

func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (l *Printer) OnRunStart(ctx context.Context, prompt string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Prompt: %s\n", prompt)
}

func (l *Printer) OnRunEnd(ctx context.Context, report *orchestrator.Report) {
	if l.Mode != ModeVerbose {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Run End: %d succeeded, %d failed, %d skipped in %s\n",
		report.Succeeded(), report.Failed(), report.Skipped(), report.Duration)
}

func (l *Printer) OnLLMCallStart(ctx context.Context, llm llms.Model, payload []llms.Message) {
	if l.Mode != ModeVerbose {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "LLM Call: %s model, %d messages\n", llm.GetName(), len(payload))
	llmutils.PrintMessages(l.Out, payload)
}

func (l *Printer) OnLLMCallEnd(ctx context.Context, llm llms.Model, resp *llms.ContentResponse) {
	l.lock.Lock()
	defer l.lock.Unlock()
	for _, choice := range resp.Choices {
		fmt.Fprintf(l.Out, "Model response: %s\n", choice.Content)
		for _, call := range choice.ToolCalls {
			fmt.Fprintf(l.Out, "  - %s(%s)\n", call.Name(), call.Arguments())
		}
	}
}

func (l *Printer) OnLLMError(ctx context.Context, llm llms.Model, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "LLM Error: %s: %s\n", llm.GetName(), err.Error())
}

func (l *Printer) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	if l.Mode != ModeVerbose {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Start: %s\n", tool.Name())
	fmt.Fprintf(l.Out, "Input: %s\n", input)
}

func (l *Printer) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool result: %s: %s\n", tool.Name(), output)
}

func (l *Printer) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Error invoking %s: %s\n", tool.Name(), err.Error())
}

func (l *Printer) OnToolNotFound(ctx context.Context, call llms.ToolCall) {
	if l.Mode != ModeVerbose {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Not Found: %s\n", call.Name())
}

// PackageLogger is a callback handler that prints to the logger.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) OnRunStart(ctx context.Context, prompt string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "run_start",
		"prompt", slices.StringUpto(prompt, 256),
	)
}

func (l *PackageLogger) OnRunEnd(ctx context.Context, report *orchestrator.Report) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "run_end",
		"run_id", report.RunID,
		"succeeded", report.Succeeded(),
		"failed", report.Failed(),
		"skipped", report.Skipped(),
		"duration", report.Duration.String(),
	)
}

func (l *PackageLogger) OnLLMCallStart(ctx context.Context, llm llms.Model, payload []llms.Message) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_call_start",
		"model", llm.GetName(),
		"messages", len(payload),
	)
}

func (l *PackageLogger) OnLLMCallEnd(ctx context.Context, llm llms.Model, resp *llms.ContentResponse) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_call_end",
		"model", llm.GetName(),
		"choices", len(resp.Choices),
		"tool_calls", len(resp.ToolCalls()),
	)
}

func (l *PackageLogger) OnLLMError(ctx context.Context, llm llms.Model, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "llm_error",
		"model", llm.GetName(),
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_start",
		"tool", tool.Name(),
		"input", input,
	)
}

func (l *PackageLogger) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_end",
		"tool", tool.Name(),
		"output", output,
	)
}

func (l *PackageLogger) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "tool_error",
		"tool", tool.Name(),
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnToolNotFound(ctx context.Context, call llms.ToolCall) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_not_found",
		"tool", call.Name(),
	)
}
