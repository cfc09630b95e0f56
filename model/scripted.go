package model

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedTurn configures one model turn in a scripted sequence: either a
// canned response or an error to surface.
type ScriptedTurn struct {
	Response *Response
	Err      error
}

// ScriptedModel is a deterministic in-memory Model for tests and examples.
// Each Generate call consumes the next scripted turn; the script exhausting
// is itself an error so runaway loops fail loudly.
type ScriptedModel struct {
	mu       sync.Mutex
	index    int
	turns    []ScriptedTurn
	requests []Request
}

// NewScriptedModel constructs a ScriptedModel from an ordered turn script.
func NewScriptedModel(turns ...ScriptedTurn) *ScriptedModel {
	cloned := make([]ScriptedTurn, len(turns))
	copy(cloned, turns)
	return &ScriptedModel{turns: cloned}
}

var _ Model = (*ScriptedModel)(nil)

// Generate implements Model, replaying the script in order.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if m.index >= len(m.turns) {
		return nil, fmt.Errorf("script exhausted at call %d", m.index+1)
	}
	turn := m.turns[m.index]
	m.index++

	if turn.Err != nil {
		return nil, turn.Err
	}

	resp := *turn.Response
	if resp.FinishReason == "" {
		if len(resp.ActionRequests) > 0 {
			resp.FinishReason = FinishToolUse
		} else {
			resp.FinishReason = FinishStop
		}
	}
	return &resp, nil
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return Info{Name: "scripted", Provider: "scripted"} }

// Calls returns the number of Generate invocations observed so far.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of the requests received, in call order.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}
