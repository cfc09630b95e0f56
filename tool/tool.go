// Package tool implements the action dispatch subsystem: a closed registry of
// named capabilities with schema-validated arguments, a parallel dispatcher
// that normalizes every failure mode into an ActionResult, and consistent
// error codes for downstream handling.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentcore/internal/util"
)

// Tool defines a single invocable capability exposed to the model.
//
// Tool implementations should:
//   - Provide clear, descriptive names (snake_case recommended)
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be safe for concurrent use; sibling requests in one turn may dispatch
//     in parallel
//
// A tool must never mutate the conversation or run state; it returns a result
// value only. That boundary is what makes concurrent dispatch safe.
type Tool interface {
	// Name returns the unique identifier for this tool within a registry.
	Name() string

	// Description returns a human-readable description provided to the model.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the tool with already-validated arguments. Blocking work
	// must honor ctx; the dispatcher enforces a per-call ceiling regardless.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// Error codes attached to ToolError for categorization.
const (
	CodeToolNotFound    = "TOOL_NOT_FOUND"
	CodeValidationError = "VALIDATION_ERROR"
	CodeExecutionError  = "EXECUTION_ERROR"
)

// ValidationError re-exports the shared argument validation error type.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool lookup or execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
