package builtin

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/hupe1980/agentcore/tool"
)

// maxShellOutputBytes is the truncation limit for command output placed in
// the transcript.
const maxShellOutputBytes = 64 * 1024

// ShellOptions configures the shell execution tool.
type ShellOptions struct {
	// WorkDir is the working directory for spawned commands.
	WorkDir string
	// Timeout bounds a single command (0 = rely on the dispatcher ceiling).
	Timeout time.Duration
	// Allowlist restricts runnable binaries by name (empty = no restriction).
	Allowlist []string
}

// NewShellTool returns a tool that executes a command line. Arguments are
// split with shell word rules (quoting, escaping) but no shell is spawned;
// the binary runs directly, so pipes and substitutions are not available.
func NewShellTool(optFns ...func(o *ShellOptions)) *tool.FunctionTool {
	opts := ShellOptions{
		Timeout: 30 * time.Second,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	allowed := make(map[string]bool, len(opts.Allowlist))
	for _, name := range opts.Allowlist {
		allowed[name] = true
	}

	return tool.NewFunctionTool(
		"run_shell",
		"Execute a command and return its combined output and exit status.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{"type": "string", "description": "Command line to execute"},
			},
			"required": []string{"command"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			words, err := shellwords.Parse(args["command"].(string))
			if err != nil {
				return nil, fmt.Errorf("cannot parse command: %w", err)
			}
			if len(words) == 0 {
				return nil, fmt.Errorf("empty command")
			}
			if len(allowed) > 0 && !allowed[words[0]] {
				return nil, fmt.Errorf("command %q is not allowed", words[0])
			}

			if opts.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
				defer cancel()
			}

			cmd := exec.CommandContext(ctx, words[0], words[1:]...)
			cmd.Dir = opts.WorkDir

			var buf bytes.Buffer
			cmd.Stdout = &buf
			cmd.Stderr = &buf

			runErr := cmd.Run()

			output := buf.String()
			if len(output) > maxShellOutputBytes {
				output = output[:maxShellOutputBytes] + "\n...[truncated]"
			}

			if runErr != nil {
				if exitErr, ok := runErr.(*exec.ExitError); ok {
					// Non-zero exit is model-visible information, not a dispatch failure.
					return fmt.Sprintf("exit status %d\n%s", exitErr.ExitCode(), output), nil
				}
				return nil, runErr
			}
			return output, nil
		},
	)
}
