// Package builtin provides ready-made tools for common agent capabilities:
// file access, shell execution and HTTP fetch. File and shell tools confine
// themselves to a configured root directory; the runtime passes validated
// arguments through and leaves sandboxing policy to the tools.
package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hupe1980/agentcore/tool"
)

// maxFileBytes is the truncation limit for file reads placed in the
// transcript. Prevents a single read from blowing the context budget.
const maxFileBytes = 256 * 1024

// resolvePath joins a relative path against root and rejects escapes. Both
// sides are made absolute before comparing, so relative roots like "." work.
func resolvePath(root, path string) (string, error) {
	if root == "" {
		return path, nil
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(filepath.Join(root, path))
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absRoot, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes workspace root", path)
	}
	return abs, nil
}

// NewReadFileTool returns a tool that reads a UTF-8 text file below root.
func NewReadFileTool(root string) *tool.FunctionTool {
	return tool.NewFunctionTool(
		"read_file",
		"Read the contents of a text file. Large files are truncated.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "File path relative to the workspace root"},
			},
			"required": []string{"path"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			path, err := resolvePath(root, args["path"].(string))
			if err != nil {
				return nil, err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			if len(data) > maxFileBytes {
				return string(data[:maxFileBytes]) + "\n...[truncated]", nil
			}
			return string(data), nil
		},
	)
}

// NewWriteFileTool returns a tool that writes a text file below root,
// creating parent directories as needed.
func NewWriteFileTool(root string) *tool.FunctionTool {
	return tool.NewFunctionTool(
		"write_file",
		"Write content to a file, replacing any existing content.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":    map[string]any{"type": "string", "description": "File path relative to the workspace root"},
				"content": map[string]any{"type": "string", "description": "Full file content to write"},
			},
			"required": []string{"path", "content"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			path, err := resolvePath(root, args["path"].(string))
			if err != nil {
				return nil, err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, err
			}
			content := args["content"].(string)
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return nil, err
			}
			return fmt.Sprintf("wrote %d bytes to %s", len(content), args["path"]), nil
		},
	)
}

// NewListDirTool returns a tool that lists a directory below root.
func NewListDirTool(root string) *tool.FunctionTool {
	return tool.NewFunctionTool(
		"list_dir",
		"List the entries of a directory. Directories are suffixed with '/'.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "Directory path relative to the workspace root"},
			},
			"required": []string{"path"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			path, err := resolvePath(root, args["path"].(string))
			if err != nil {
				return nil, err
			}
			entries, err := os.ReadDir(path)
			if err != nil {
				return nil, err
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				name := e.Name()
				if e.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}
			sort.Strings(names)
			return strings.Join(names, "\n"), nil
		},
	)
}
