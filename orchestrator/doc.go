// Package orchestrator sends a prompt to the model with the registered tools,
// and dispatches the tool calls of the response.
//
// A run has exactly one model round trip. Tool calls are executed
// sequentially in the response order, and the tool results are
// reported to the caller, not to the model.
package orchestrator
