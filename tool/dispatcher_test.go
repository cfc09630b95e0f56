package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcore/core"
)

func echoTool() *FunctionTool {
	return NewFunctionTool("echo", "Echo the input", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
		"required": []string{"text"},
	}, func(_ context.Context, args map[string]any) (any, error) {
		return args["text"], nil
	})
}

func sleepTool(name string, d time.Duration) *FunctionTool {
	return NewFunctionTool(name, "Sleep then echo", map[string]any{
		"type": "object", "properties": map[string]any{},
	}, func(ctx context.Context, _ map[string]any) (any, error) {
		select {
		case <-time.After(d):
			return "slept", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

func request(id, name string, args map[string]any) core.ActionRequest {
	raw, _ := json.Marshal(args)
	return core.ActionRequest{ID: id, Name: name, Arguments: raw}
}

func TestDispatch_Empty(t *testing.T) {
	d := NewDispatcher(NewRegistry())
	assert.Nil(t, d.Dispatch(context.Background(), nil))
}

func TestDispatch_SingleRequest(t *testing.T) {
	d := NewDispatcher(NewRegistry(echoTool()))

	results := d.Dispatch(context.Background(), []core.ActionRequest{
		request("r1", "echo", map[string]any{"text": "hello"}),
	})

	require.Len(t, results, 1)
	assert.Equal(t, "r1", results[0].RequestID)
	assert.True(t, results[0].Success)
	assert.Equal(t, "hello", results[0].Output)
}

func TestDispatch_ResultsMatchRequestOrder(t *testing.T) {
	// Reverse-ordered sleeps force out-of-order completion; results must
	// still land in request order with matching request IDs.
	registry := NewRegistry(
		sleepTool("slow", 80*time.Millisecond),
		sleepTool("medium", 40*time.Millisecond),
		sleepTool("fast", 0),
	)
	d := NewDispatcher(registry, func(o *DispatcherOptions) {
		o.MaxParallel = 3
	})

	requests := []core.ActionRequest{
		request("r1", "slow", nil),
		request("r2", "medium", nil),
		request("r3", "fast", nil),
	}

	results := d.Dispatch(context.Background(), requests)

	require.Len(t, results, len(requests))
	for i, res := range results {
		assert.Equal(t, requests[i].ID, res.RequestID)
		assert.Equal(t, requests[i].Name, res.Name)
		assert.True(t, res.Success)
	}
}

func TestDispatch_UnknownTool(t *testing.T) {
	d := NewDispatcher(NewRegistry(echoTool()))

	results := d.Dispatch(context.Background(), []core.ActionRequest{
		request("r1", "missing", nil),
	})

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, CodeToolNotFound)
}

func TestDispatch_MalformedArguments(t *testing.T) {
	d := NewDispatcher(NewRegistry(echoTool()))

	results := d.Dispatch(context.Background(), []core.ActionRequest{
		{ID: "r1", Name: "echo", Arguments: json.RawMessage(`{not json`)},
	})

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, CodeValidationError)
}

func TestDispatch_TimeoutIsolatedToOneSibling(t *testing.T) {
	registry := NewRegistry(
		sleepTool("hang", time.Hour),
		sleepTool("quick_a", 0),
		sleepTool("quick_b", 0),
	)
	d := NewDispatcher(registry, func(o *DispatcherOptions) {
		o.MaxParallel = 3
		o.CallTimeout = 50 * time.Millisecond
	})

	results := d.Dispatch(context.Background(), []core.ActionRequest{
		request("r1", "quick_a", nil),
		request("r2", "hang", nil),
		request("r3", "quick_b", nil),
	})

	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, CodeExecutionError)
	assert.True(t, results[2].Success)
}

func TestDispatch_PanicRecovered(t *testing.T) {
	panicTool := NewFunctionTool("explode", "Panics", map[string]any{
		"type": "object", "properties": map[string]any{},
	}, func(_ context.Context, _ map[string]any) (any, error) {
		panic("kaboom")
	})
	d := NewDispatcher(NewRegistry(panicTool))

	results := d.Dispatch(context.Background(), []core.ActionRequest{
		request("r1", "explode", nil),
	})

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "kaboom")
	assert.Contains(t, results[0].Error, CodeExecutionError)
}

func TestDispatch_NonStringOutputEncodedAsJSON(t *testing.T) {
	structTool := NewFunctionTool("inspect", "Returns structured output", map[string]any{
		"type": "object", "properties": map[string]any{},
	}, func(_ context.Context, _ map[string]any) (any, error) {
		return map[string]any{"files": 3}, nil
	})
	d := NewDispatcher(NewRegistry(structTool))

	results := d.Dispatch(context.Background(), []core.ActionRequest{
		request("r1", "inspect", nil),
	})

	require.Len(t, results, 1)
	assert.JSONEq(t, `{"files":3}`, results[0].Output)
}

func TestDispatch_PureToolIsIdempotent(t *testing.T) {
	d := NewDispatcher(NewRegistry(echoTool()))
	req := request("r1", "echo", map[string]any{"text": "same"})

	first := d.Dispatch(context.Background(), []core.ActionRequest{req})[0]
	second := d.Dispatch(context.Background(), []core.ActionRequest{req})[0]

	// Elapsed varies per call; everything the model sees is identical.
	first.Elapsed, second.Elapsed = 0, 0
	assert.Equal(t, first, second)
}

func TestDispatch_BoundedParallelism(t *testing.T) {
	registry := NewRegistry(sleepTool("pause", 30*time.Millisecond))
	d := NewDispatcher(registry, func(o *DispatcherOptions) {
		o.MaxParallel = 1
	})

	var requests []core.ActionRequest
	for i := 0; i < 3; i++ {
		requests = append(requests, request(fmt.Sprintf("r%d", i+1), "pause", nil))
	}

	start := time.Now()
	results := d.Dispatch(context.Background(), requests)
	elapsed := time.Since(start)

	require.Len(t, results, 3)
	for _, res := range results {
		assert.True(t, res.Success)
	}
	// Serialized by the semaphore: three 30ms calls cannot overlap.
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
}
