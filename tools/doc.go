// Package tools defines the Tool interface the model can call, the registry of
// tools advertised to the model, and helpers to coerce and validate the loosely
// typed arguments the model sends.
package tools
