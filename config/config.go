// Package config loads and resolves the runtime configuration consumed by the
// execution loop. The runtime itself never reads files or environment
// variables; this package is the external collaborator that produces a
// resolved Config with override precedence applied
// (explicit overrides > environment > override file > base file > defaults).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMConfig selects and parameterizes the backend model.
type LLMConfig struct {
	Provider    string        `yaml:"provider"` // "anthropic" or "openai"
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int64         `yaml:"max_tokens"`
	Retry       RetryConfig   `yaml:"retry"`
	Breaker     BreakerConfig `yaml:"breaker"`
}

// RetryConfig mirrors resilience.RetryConfig in file-friendly units.
type RetryConfig struct {
	MaxRetries      int      `yaml:"max_retries"`
	InitialDelay    Duration `yaml:"initial_delay"`
	MaxDelay        Duration `yaml:"max_delay"`
	ExponentialBase float64  `yaml:"exponential_base"`
}

// BreakerConfig parameterizes the circuit breaker.
type BreakerConfig struct {
	FailureThreshold int      `yaml:"failure_threshold"`
	RecoveryTimeout  Duration `yaml:"recovery_timeout"`
}

// AgentConfig bounds a run.
type AgentConfig struct {
	MaxSteps     int    `yaml:"max_steps"`
	MaxRunTokens int    `yaml:"max_run_tokens"`
	WorkspaceDir string `yaml:"workspace_dir"`
	SystemPrompt string `yaml:"system_prompt"`
}

// BudgetConfig parameterizes the context budget manager.
type BudgetConfig struct {
	ContextWindow    int     `yaml:"context_window"`
	SafetyMargin     int     `yaml:"safety_margin"`
	HeadroomFraction float64 `yaml:"headroom_fraction"`
	KeepRecentTurns  int     `yaml:"keep_recent_turns"`
}

// ToolsConfig toggles the builtin tool set.
type ToolsConfig struct {
	EnableFileTools bool     `yaml:"enable_file_tools"`
	EnableShell     bool     `yaml:"enable_shell"`
	EnableFetch     bool     `yaml:"enable_fetch"`
	ShellTimeout    Duration `yaml:"shell_timeout"`
	MaxParallel     int      `yaml:"max_parallel"`
	CallTimeout     Duration `yaml:"call_timeout"`
}

// Config is the resolved configuration object handed to the runtime.
type Config struct {
	LLM    LLMConfig    `yaml:"llm"`
	Agent  AgentConfig  `yaml:"agent"`
	Budget BudgetConfig `yaml:"budget"`
	Tools  ToolsConfig  `yaml:"tools"`
}

// Default returns the baseline configuration all other layers override.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Provider:    "anthropic",
			Temperature: 0.7,
			MaxTokens:   4096,
			Retry: RetryConfig{
				MaxRetries:      3,
				InitialDelay:    Duration(500 * time.Millisecond),
				MaxDelay:        Duration(30 * time.Second),
				ExponentialBase: 2.0,
			},
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				RecoveryTimeout:  Duration(30 * time.Second),
			},
		},
		Agent: AgentConfig{
			MaxSteps: 25,
		},
		Budget: BudgetConfig{
			ContextWindow:    128000,
			SafetyMargin:     512,
			HeadroomFraction: 0.1,
			KeepRecentTurns:  3,
		},
		Tools: ToolsConfig{
			EnableFileTools: true,
			EnableShell:     false,
			EnableFetch:     true,
			ShellTimeout:    Duration(30 * time.Second),
			MaxParallel:     4,
			CallTimeout:     Duration(60 * time.Second),
		},
	}
}

// Load reads a YAML config file and resolves it over the defaults with
// override precedence applied. A missing base file is not an error; the
// defaults plus overrides are returned.
func Load(path string, optFns ...func(r *Resolver)) (Config, error) {
	resolver := NewResolver(optFns...)

	base := toMap(Default())
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else {
			var fileMap map[string]any
			if err := yaml.Unmarshal(data, &fileMap); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
			base = DeepMerge(base, fileMap)
		}
	}

	merged, err := resolver.Apply(base)
	if err != nil {
		return Config{}, err
	}
	return fromMap(merged)
}

// toMap round-trips a Config through YAML into a generic map.
func toMap(cfg Config) map[string]any {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// fromMap decodes a generic map back into a typed Config.
func fromMap(m map[string]any) (Config, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return Config{}, fmt.Errorf("encode merged config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode merged config: %w", err)
	}
	return cfg, nil
}
