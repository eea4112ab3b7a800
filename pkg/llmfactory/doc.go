// Package llmfactory provides configuration and factory for LLM model instantiation,
// supporting the local Ollama server and OpenAI compatible endpoints.
package llmfactory
