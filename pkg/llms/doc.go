// Package llms provides the provider-neutral types used to talk to language models:
// the Model interface, chat messages, tool definitions and the tool calls a model
// asks the caller to execute.
//
// Provider implementations live in sub-packages; their wire clients are kept in
// internal directories.
package llms
