package orchestrator

import (
	"time"

	"github.com/effective-security/localagent/pkg/llms"
)

// ToolResult is the outcome of a single tool call
type ToolResult struct {
	Call   llms.ToolCall `json:"call" yaml:"Call"`
	Output string        `json:"output,omitempty" yaml:"Output,omitempty"`
	Err    error         `json:"-" yaml:"-"`
	// Error is the text of Err, for serialization
	Error string `json:"error,omitempty" yaml:"Error,omitempty"`
	// Skipped is set when no registered tool matches the call
	Skipped bool `json:"skipped,omitempty" yaml:"Skipped,omitempty"`
}

// Report is the outcome of a run
type Report struct {
	RunID    string                `json:"run_id" yaml:"RunID"`
	Prompt   string                `json:"prompt" yaml:"Prompt"`
	Model    string                `json:"model" yaml:"Model"`
	Content  string                `json:"content,omitempty" yaml:"Content,omitempty"`
	Response *llms.ContentResponse `json:"-" yaml:"-"`
	Results  []*ToolResult         `json:"results,omitempty" yaml:"Results,omitempty"`
	Duration time.Duration         `json:"duration" yaml:"Duration"`
}

// Succeeded returns the number of tool calls completed without error
func (r *Report) Succeeded() int {
	count := 0
	for _, res := range r.Results {
		if !res.Skipped && res.Err == nil {
			count++
		}
	}
	return count
}

// Failed returns the number of tool calls completed with error
func (r *Report) Failed() int {
	count := 0
	for _, res := range r.Results {
		if res.Err != nil {
			count++
		}
	}
	return count
}

// Skipped returns the number of tool calls with no matching tool
func (r *Report) Skipped() int {
	count := 0
	for _, res := range r.Results {
		if res.Skipped {
			count++
		}
	}
	return count
}
