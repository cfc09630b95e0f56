// Package agentcore provides a high-level façade over the execution loop and
// its collaborators (backend model, tool registry, resilience executor and
// context budget manager) enabling rapid construction of bounded agent runs.
// Most applications interact with this package by:
//  1. Creating a Runtime via New() (optionally from a resolved config.Config)
//  2. Registering additional tools beyond the builtin set
//  3. Invoking Run with a user prompt, or RunConversation with a transcript
//
// The façade delegates loop mechanics to agent.Agent while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a config file and a
// structured logger.
package agentcore

import (
	"context"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentcore/agent"
	"github.com/hupe1980/agentcore/budget"
	"github.com/hupe1980/agentcore/config"
	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/logging"
	"github.com/hupe1980/agentcore/model"
	"github.com/hupe1980/agentcore/model/anthropic"
	"github.com/hupe1980/agentcore/model/openai"
	"github.com/hupe1980/agentcore/resilience"
	"github.com/hupe1980/agentcore/tool"
	"github.com/hupe1980/agentcore/tool/builtin"
)

// Options configures the Runtime instance.
type Options struct {
	// Config drives backend selection, limits, resilience and the builtin
	// tool set. Defaults to config.Default().
	Config config.Config

	// Backend overrides the model that Config.LLM would select. Useful for
	// wiring a scripted model in tests or a custom provider.
	Backend model.Model

	// Tools are registered in addition to the builtins Config enables.
	Tools []tool.Tool

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Runtime is the high-level façade aggregating the loop and its collaborators.
type Runtime struct {
	opts     Options
	agent    *agent.Agent
	registry *tool.Registry
	system   string
}

// New creates a Runtime from a resolved configuration with optional
// overrides. The zero Options value yields a runtime backed by the default
// Anthropic model with file and fetch tools enabled.
func New(optFns ...func(o *Options)) (*Runtime, error) {
	opts := Options{
		Config: config.Default(),
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	backend := opts.Backend
	if backend == nil {
		var err error
		backend, err = buildBackend(opts.Config.LLM)
		if err != nil {
			return nil, err
		}
	}

	registry := tool.NewRegistry()
	registerBuiltins(registry, opts.Config)
	for _, t := range opts.Tools {
		registry.Register(t)
	}

	cfg := opts.Config
	executor := resilience.NewExecutor(func(o *resilience.Options) {
		o.Retry = resilience.RetryConfig{
			MaxRetries:   cfg.LLM.Retry.MaxRetries,
			InitialDelay: cfg.LLM.Retry.InitialDelay.Std(),
			MaxDelay:     cfg.LLM.Retry.MaxDelay.Std(),
			Base:         cfg.LLM.Retry.ExponentialBase,
		}
		if cfg.LLM.Breaker.FailureThreshold > 0 {
			o.Breaker = resilience.NewCircuitBreaker(
				cfg.LLM.Breaker.FailureThreshold,
				cfg.LLM.Breaker.RecoveryTimeout.Std(),
			)
		}
		o.Logger = opts.Logger
	})

	dispatcher := tool.NewDispatcher(registry, func(o *tool.DispatcherOptions) {
		o.MaxParallel = cfg.Tools.MaxParallel
		o.CallTimeout = cfg.Tools.CallTimeout.Std()
		o.Logger = opts.Logger
	})

	manager := budget.NewManager(func(o *budget.Options) {
		o.MaxTokens = cfg.Budget.ContextWindow
		o.SafetyMargin = cfg.Budget.SafetyMargin
		o.HeadroomFraction = cfg.Budget.HeadroomFraction
		o.KeepRecentTurns = cfg.Budget.KeepRecentTurns
		o.Logger = opts.Logger
	})

	a := agent.New(backend, registry, func(o *agent.Options) {
		o.Executor = executor
		o.Dispatcher = dispatcher
		o.Budget = manager
		o.Limits = agent.Limits{
			MaxSteps:  cfg.Agent.MaxSteps,
			MaxTokens: cfg.Agent.MaxRunTokens,
		}
		o.Params = model.GenerationParams{
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		}
		o.Logger = opts.Logger
	})

	return &Runtime{
		opts:     opts,
		agent:    a,
		registry: registry,
		system:   cfg.Agent.SystemPrompt,
	}, nil
}

// RegisterTool adds a tool to the underlying registry.
func (r *Runtime) RegisterTool(t tool.Tool) { r.registry.Register(t) }

// Run executes one bounded run from a single user prompt, prepending the
// configured system prompt when present.
func (r *Runtime) Run(ctx context.Context, prompt string) (*agent.RunResult, error) {
	var conv core.Conversation
	if r.system != "" {
		conv.Append(core.NewSystemMessage(r.system))
	}
	conv.Append(core.NewUserMessage(prompt))

	return r.agent.Run(ctx, conv)
}

// RunConversation executes one bounded run over a caller-built transcript.
func (r *Runtime) RunConversation(ctx context.Context, conv core.Conversation) (*agent.RunResult, error) {
	return r.agent.Run(ctx, conv)
}

// buildBackend selects the model adapter named by the LLM config.
func buildBackend(cfg config.LLMConfig) (model.Model, error) {
	switch cfg.Provider {
	case "", "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
			if cfg.MaxTokens > 0 {
				o.MaxTokens = cfg.MaxTokens
			}
			o.APIKey = cfg.APIKey
		}), nil
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = cfg.MaxTokens
			}
		}), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

// registerBuiltins wires the builtin tool set the config enables.
func registerBuiltins(registry *tool.Registry, cfg config.Config) {
	root := cfg.Agent.WorkspaceDir
	if root == "" {
		root = "."
	}

	if cfg.Tools.EnableFileTools {
		registry.Register(builtin.NewReadFileTool(root))
		registry.Register(builtin.NewWriteFileTool(root))
		registry.Register(builtin.NewListDirTool(root))
	}
	if cfg.Tools.EnableShell {
		registry.Register(builtin.NewShellTool(func(o *builtin.ShellOptions) {
			o.WorkDir = root
			o.Timeout = cfg.Tools.ShellTimeout.Std()
		}))
	}
	if cfg.Tools.EnableFetch {
		registry.Register(builtin.NewHTTPFetchTool())
	}
}
