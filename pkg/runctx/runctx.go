// Package runctx carries the identity of a single prompt run through the context.
package runctx

import (
	"context"
	"sync"
	"time"

	"github.com/effective-security/x/values"
	"github.com/google/uuid"
)

// RunContext is the context of a prompt run
type RunContext interface {
	// RunID returns the unique ID of the run
	RunID() string
	// Started returns the time the run was created
	Started() time.Time
	// GetMetadata retrieves metadata by key
	GetMetadata(key string) (value any, ok bool)
	// SetMetadata sets metadata by key
	SetMetadata(key string, value any)
}

type runContext struct {
	runID    string
	started  time.Time
	metadata sync.Map
}

func (c *runContext) RunID() string {
	return c.runID
}

func (c *runContext) Started() time.Time {
	return c.started
}

func (c *runContext) GetMetadata(key string) (value any, ok bool) {
	return c.metadata.Load(key)
}

func (c *runContext) SetMetadata(key string, value any) {
	c.metadata.Store(key, value)
}

// New returns RunContext with the given ID,
// a new ID is generated if runID is empty.
func New(runID string) RunContext {
	return &runContext{
		runID:   values.StringsCoalesce(runID, NewRunID()),
		started: time.Now(),
	}
}

type contextKey int

const (
	keyContext contextKey = iota
)

// WithRunContext returns a new context with RunContext value
func WithRunContext(ctx context.Context, runCtx RunContext) context.Context {
	return context.WithValue(ctx, keyContext, runCtx)
}

// Get retrieves the RunContext from the context
func Get(ctx context.Context) RunContext {
	if v, ok := ctx.Value(keyContext).(RunContext); ok {
		return v
	}
	return nil
}

// Ensure returns the context with RunContext,
// a new one is created if the context does not have it.
func Ensure(ctx context.Context) (context.Context, RunContext) {
	if v := Get(ctx); v != nil {
		return ctx, v
	}
	runCtx := New("")
	return WithRunContext(ctx, runCtx), runCtx
}

// GetRunID retrieves the run ID from the provided context.
// If the context does not contain a RunContext, it returns an empty string.
func GetRunID(ctx context.Context) string {
	if v := Get(ctx); v != nil {
		return v.RunID()
	}
	return ""
}

// NewRunID generates a new run ID
func NewRunID() string {
	return uuid.NewString()
}
