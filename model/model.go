package model

import (
	"context"

	"github.com/hupe1980/agentcore/core"
)

// ToolDefinition declaratively exposes a callable tool to the model.
// Parameters is a JSON Schema object (minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// GenerationParams are the provider-agnostic sampling knobs forwarded with
// every request.
type GenerationParams struct {
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int64   `json:"max_tokens,omitempty"`
}

// Request captures the normalized model input produced by the execution loop:
// the ordered transcript, the available tool descriptors and generation
// parameters. Transport detail (endpoint, auth, serialization) belongs to the
// provider adapters.
type Request struct {
	Messages core.Conversation `json:"messages"`
	Tools    []ToolDefinition  `json:"tools,omitempty"`
	Params   GenerationParams  `json:"params,omitempty"`
}

// Usage captures token accounting for a single response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another response's usage into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Finish reasons reported by providers, normalized.
const (
	FinishStop    = "stop"     // model completed its turn
	FinishLength  = "length"   // output truncated by max tokens
	FinishToolUse = "tool_use" // model requested tool execution
)

// Response is the normalized outcome of one backend call. Text may be empty
// when the model only requests actions; ActionRequests may be empty when the
// model finishes with plain text.
type Response struct {
	Text           string               `json:"text,omitempty"`
	ActionRequests []core.ActionRequest `json:"action_requests,omitempty"`
	Usage          Usage                `json:"usage"`
	FinishReason   string               `json:"finish_reason"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "scripted", ...
}

// Model is the minimal interface required to drive generation. Exactly one
// call is in flight per run; providers must honor ctx cancellation.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}
