package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentcore/budget"
	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/logging"
	"github.com/hupe1980/agentcore/model"
	"github.com/hupe1980/agentcore/resilience"
	"github.com/hupe1980/agentcore/tool"
)

// TerminalReason classifies why a run ended.
type TerminalReason string

// Terminal reasons returned in RunResult.Reason.
const (
	ReasonCompleted       TerminalReason = "completed"
	ReasonStepLimit       TerminalReason = "step_limit_exceeded"
	ReasonBudgetExhausted TerminalReason = "resource_budget_exhausted"
	ReasonFatalError      TerminalReason = "fatal_error"
	ReasonCancelled       TerminalReason = "cancelled"
)

// Limits are the hard ceilings checked before each backend call.
type Limits struct {
	// MaxSteps bounds backend calls per run (0 = unlimited).
	MaxSteps int
	// MaxTokens bounds cumulative reported token usage per run (0 = unlimited).
	MaxTokens int
}

// RunResult is what the caller receives: the final (or best partial)
// assistant text, the terminal reason, and run accounting. Presentation is
// the caller's concern.
type RunResult struct {
	FinalText string
	Reason    TerminalReason
	Steps     int
	Usage     model.Usage
}

// Options configures an Agent.
type Options struct {
	// Executor applies retry and breaker policy to backend calls. A default
	// executor (default retry config, no breaker) is created when nil.
	Executor *resilience.Executor
	// Dispatcher executes tool requests. A default parallel dispatcher over
	// the registry is created when nil.
	Dispatcher *tool.Dispatcher
	// Budget decides when and how to compress the conversation. A default
	// manager is created when nil.
	Budget *budget.Manager
	// Limits are the per-run ceilings.
	Limits Limits
	// Params are forwarded with every backend request.
	Params model.GenerationParams
	// Logger receives structured run events.
	Logger logging.Logger
}

// Agent is the state machine driving one bounded conversational run at a
// time. The zero value is not usable; construct with New. An Agent may be
// reused for sequential runs; each run owns its conversation exclusively.
type Agent struct {
	backend    model.Model
	registry   *tool.Registry
	dispatcher *tool.Dispatcher
	budget     *budget.Manager
	limits     Limits
	params     model.GenerationParams
	logger     logging.Logger
}

// New constructs an Agent over a backend model and tool registry with
// optional overrides.
func New(backend model.Model, registry *tool.Registry, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Limits: Limits{MaxSteps: 25},
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Executor == nil {
		opts.Executor = resilience.NewExecutor()
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = tool.NewDispatcher(registry, func(o *tool.DispatcherOptions) {
			o.Logger = opts.Logger
		})
	}
	if opts.Budget == nil {
		opts.Budget = budget.NewManager(func(o *budget.Options) {
			o.Logger = opts.Logger
		})
	}

	return &Agent{
		backend:    opts.Executor.WrapModel(backend),
		registry:   registry,
		dispatcher: opts.Dispatcher,
		budget:     opts.Budget,
		limits:     opts.Limits,
		params:     opts.Params,
		logger:     opts.Logger,
	}
}

// runState tracks one run from start to termination. It is created at run
// start and discarded at run end; callers see only the RunResult.
type runState struct {
	conv  core.Conversation
	steps int
	usage model.Usage
}

// Run drives the conversation until the model completes, a limit is hit, the
// backend fails fatally, or ctx is cancelled. The returned RunResult is
// always non-nil and carries the best available partial text; the error is
// non-nil only for fatal_error (the underlying cause) and cancelled (the
// context error).
func (a *Agent) Run(ctx context.Context, conv core.Conversation) (*RunResult, error) {
	rs := &runState{conv: conv.Clone()}
	runID := core.NewID()
	log := a.logger

	log.Info("agent.run.start", "run_id", runID, "messages", len(rs.conv), "tools", a.registry.Len())

	for {
		if err := ctx.Err(); err != nil {
			log.Info("agent.run.cancelled", "run_id", runID, "steps", rs.steps)
			return a.result(rs, ReasonCancelled), err
		}
		if a.limits.MaxSteps > 0 && rs.steps >= a.limits.MaxSteps {
			log.Warn("agent.run.step_limit", "run_id", runID, "steps", rs.steps)
			return a.result(rs, ReasonStepLimit), nil
		}
		if a.limits.MaxTokens > 0 && rs.usage.TotalTokens >= a.limits.MaxTokens {
			log.Warn("agent.run.budget_exhausted", "run_id", runID, "tokens", rs.usage.TotalTokens)
			return a.result(rs, ReasonBudgetExhausted), nil
		}
		if pending := rs.conv.UnresolvedRequests(); len(pending) > 0 {
			err := fmt.Errorf("conversation has %d unresolved action requests", len(pending))
			return a.result(rs, ReasonFatalError), err
		}

		if a.budget.ShouldCompress(rs.conv) {
			rs.conv = a.budget.Compress(rs.conv)
		}

		resp, err := a.backend.Generate(ctx, model.Request{
			Messages: rs.conv,
			Tools:    a.registry.Definitions(),
			Params:   a.params,
		})
		rs.steps++
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				log.Info("agent.run.cancelled", "run_id", runID, "steps", rs.steps)
				return a.result(rs, ReasonCancelled), err
			}
			log.Error("agent.run.backend_failed", "run_id", runID, "step", rs.steps, "error", err.Error())
			return a.result(rs, ReasonFatalError), err
		}
		rs.usage.Add(resp.Usage)

		rs.conv.Append(core.NewAssistantMessage(resp.Text, resp.ActionRequests...))

		if len(resp.ActionRequests) == 0 {
			log.Info("agent.run.completed", "run_id", runID, "steps", rs.steps, "tokens", rs.usage.TotalTokens)
			return a.result(rs, ReasonCompleted), nil
		}

		log.Debug("agent.run.dispatch", "run_id", runID, "step", rs.steps, "requests", len(resp.ActionRequests))
		results := a.dispatcher.Dispatch(ctx, resp.ActionRequests)
		if ctx.Err() != nil {
			// The run no longer owns these requests; drop the buffered results.
			log.Info("agent.run.cancelled", "run_id", runID, "steps", rs.steps)
			return a.result(rs, ReasonCancelled), ctx.Err()
		}
		rs.conv.Append(core.NewToolMessage(results...))
	}
}

func (a *Agent) result(rs *runState, reason TerminalReason) *RunResult {
	return &RunResult{
		FinalText: rs.conv.LastAssistantText(),
		Reason:    reason,
		Steps:     rs.steps,
		Usage:     rs.usage,
	}
}
