package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envPrefix namespaces the environment variables the resolver consults.
const envPrefix = "AGENTCORE_"

// envMapping maps environment variable suffixes to dotted config paths.
var envMapping = map[string]string{
	"API_KEY":           "llm.api_key",
	"MODEL":             "llm.model",
	"PROVIDER":          "llm.provider",
	"MAX_RETRIES":       "llm.retry.max_retries",
	"INITIAL_DELAY":     "llm.retry.initial_delay",
	"MAX_DELAY":         "llm.retry.max_delay",
	"EXPONENTIAL_BASE":  "llm.retry.exponential_base",
	"FAILURE_THRESHOLD": "llm.breaker.failure_threshold",
	"RECOVERY_TIMEOUT":  "llm.breaker.recovery_timeout",
	"MAX_STEPS":         "agent.max_steps",
	"MAX_RUN_TOKENS":    "agent.max_run_tokens",
	"WORKSPACE_DIR":     "agent.workspace_dir",
	"CONTEXT_WINDOW":    "budget.context_window",
	"ENABLE_FILE_TOOLS": "tools.enable_file_tools",
	"ENABLE_SHELL":      "tools.enable_shell",
	"ENABLE_FETCH":      "tools.enable_fetch",
}

// Resolver applies configuration overrides with fixed precedence:
// explicit Set calls > environment variables > override file > base.
type Resolver struct {
	// OverrideFile is an optional second YAML file merged over the base.
	OverrideFile string
	// LookupEnv is replaceable in tests; defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)

	sets map[string]any
}

// NewResolver constructs a Resolver with optional configuration.
func NewResolver(optFns ...func(r *Resolver)) *Resolver {
	r := &Resolver{
		LookupEnv: os.LookupEnv,
		sets:      map[string]any{},
	}
	for _, fn := range optFns {
		fn(r)
	}
	return r
}

// Set records an explicit override for a dotted config path, e.g.
// Set("llm.model", "gpt-4o-mini"). Explicit overrides win over every other
// source.
func (r *Resolver) Set(path string, value any) {
	r.sets[path] = value
}

// Apply merges all override layers over the base map and returns the result.
func (r *Resolver) Apply(base map[string]any) (map[string]any, error) {
	result := base

	if r.OverrideFile != "" {
		data, err := os.ReadFile(r.OverrideFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read override file %s: %w", r.OverrideFile, err)
			}
		} else {
			var fileMap map[string]any
			if err := yaml.Unmarshal(data, &fileMap); err != nil {
				return nil, fmt.Errorf("parse override file %s: %w", r.OverrideFile, err)
			}
			result = DeepMerge(result, fileMap)
		}
	}

	for suffix, path := range envMapping {
		if raw, ok := r.LookupEnv(envPrefix + suffix); ok {
			setPath(result, path, coerce(raw))
		}
	}

	for path, value := range r.sets {
		setPath(result, path, value)
	}

	return result, nil
}

// DeepMerge merges override into base recursively: nested maps merge key by
// key, everything else (scalars, lists) is replaced by the override value.
// Neither input is mutated.
func DeepMerge(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if baseMap, ok := result[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = DeepMerge(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}

	return result
}

// setPath writes value at a dotted path, creating intermediate maps.
func setPath(m map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := m
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// coerce converts an environment string to bool, int or float where the
// value parses cleanly, else keeps it as a string.
func coerce(raw string) any {
	switch strings.ToLower(raw) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if i, err := strconv.Atoi(raw); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
