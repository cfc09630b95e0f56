package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/logging"
)

// DispatcherOptions configures the parallel dispatcher.
type DispatcherOptions struct {
	// MaxParallel bounds concurrent sibling dispatches (0 or <1 = no limit).
	MaxParallel int
	// CallTimeout is the per-dispatch ceiling (0 = no ceiling).
	CallTimeout time.Duration
	// Logger receives structured dispatch events.
	Logger logging.Logger
}

// Dispatcher executes a turn's action requests against a registry, possibly
// in parallel, and always returns exactly one ActionResult per request, in
// request order, regardless of completion order. It never returns an error:
// every failure mode (unknown tool, bad arguments, handler error, panic,
// timeout) is captured in the result's error field.
type Dispatcher struct {
	registry    *Registry
	maxParallel int
	callTimeout time.Duration
	logger      logging.Logger
}

// NewDispatcher constructs a Dispatcher over a registry with optional overrides.
func NewDispatcher(registry *Registry, optFns ...func(o *DispatcherOptions)) *Dispatcher {
	opts := DispatcherOptions{
		MaxParallel: 4,
		CallTimeout: 60 * time.Second,
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Dispatcher{
		registry:    registry,
		maxParallel: opts.MaxParallel,
		callTimeout: opts.CallTimeout,
		logger:      opts.Logger,
	}
}

// Dispatch executes every request and returns results indexed by request
// order. Sibling requests have no ordering dependency, so they run
// concurrently under a bounded semaphore; results are buffered and merged in
// the original order so downstream consumers see a deterministic transcript.
func (d *Dispatcher) Dispatch(ctx context.Context, requests []core.ActionRequest) []core.ActionResult {
	n := len(requests)
	if n == 0 {
		return nil
	}

	// Fast path: single request, execute inline.
	if n == 1 {
		return []core.ActionResult{d.dispatchOne(ctx, requests[0])}
	}

	maxPar := d.maxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	results := make([]core.ActionResult, n)
	sem := make(chan struct{}, maxPar)
	var wg sync.WaitGroup

	batchStart := time.Now()
	for i := range requests {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, req core.ActionRequest) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = d.dispatchOne(ctx, req)
		}(i, requests[i])
	}
	wg.Wait()

	d.logger.Debug(
		"tool.dispatch.batch.complete",
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results
}

// dispatchOne runs one request through validation, execution, panic recovery
// and the per-call timeout, mapping every outcome to an ActionResult.
func (d *Dispatcher) dispatchOne(ctx context.Context, req core.ActionRequest) core.ActionResult {
	start := time.Now()

	result := core.ActionResult{RequestID: req.ID, Name: req.Name}

	impl, ok := d.registry.Get(req.Name)
	if !ok {
		result.Error = NewToolError(req.Name, "tool not found in registry", CodeToolNotFound).Error()
		result.Elapsed = time.Since(start)
		d.logger.Warn("tool.dispatch.unknown", "tool", req.Name, "request_id", req.ID)
		return result
	}

	args := map[string]any{}
	if len(req.Arguments) > 0 {
		if err := json.Unmarshal(req.Arguments, &args); err != nil {
			result.Error = NewToolError(req.Name, fmt.Sprintf("malformed arguments: %v", err), CodeValidationError).Error()
			result.Elapsed = time.Since(start)
			return result
		}
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if d.callTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, d.callTimeout)
		defer cancel()
	}

	output, err := d.execute(callCtx, impl, args)
	result.Elapsed = time.Since(start)

	if err != nil {
		result.Error = err.Error()
		d.logger.Error("tool.dispatch.error", "tool", req.Name, "request_id", req.ID, "error", err.Error())
		return result
	}

	result.Success = true
	result.Output = stringify(output)
	d.logger.Info("tool.dispatch.success", "tool", req.Name, "request_id", req.ID, "duration_ms", result.Elapsed.Milliseconds())
	return result
}

// execute invokes the tool in its own goroutine so a handler that ignores
// ctx still cannot block the turn past the per-call ceiling. Panics are
// recovered and mapped to EXECUTION_ERROR.
func (d *Dispatcher) execute(ctx context.Context, impl Tool, args map[string]any) (any, error) {
	type outcome struct {
		output any
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("tool.dispatch.panic", "tool", impl.Name(), "recover", r, "stack", string(debug.Stack()))
				done <- outcome{err: NewToolError(impl.Name(), fmt.Sprintf("panic: %v", r), CodeExecutionError)}
			}
		}()
		output, err := impl.Call(ctx, args)
		done <- outcome{output: output, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, NewToolError(impl.Name(), ctx.Err().Error(), CodeExecutionError)
	case o := <-done:
		return o.output, o.err
	}
}

// stringify renders a tool result for the transcript: strings pass through,
// everything else is JSON encoded.
func stringify(output any) string {
	switch v := output.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
