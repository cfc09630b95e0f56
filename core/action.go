package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActionRequest is a model-issued tool invocation: a tool name plus a JSON
// argument mapping. IDs are unique within a turn; when the backend does not
// supply one the adapter assigns a fresh ID via NewID.
type ActionRequest struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ActionResult records the outcome of dispatching a single ActionRequest.
// Exactly one result exists per request once dispatch completes; Error is
// populated (and Success false) for every failure mode, so a result never
// needs to be paired with a separate Go error.
type ActionResult struct {
	RequestID string        `json:"request_id"`
	Name      string        `json:"name"`
	Success   bool          `json:"success"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}

// NewID generates a new unique identifier for requests and runs.
func NewID() string { return uuid.NewString() }
