package builtin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hupe1980/agentcore/tool"
)

// maxFetchBytes is the truncation limit for fetched response bodies.
const maxFetchBytes = 128 * 1024

// FetchOptions configures the HTTP fetch tool.
type FetchOptions struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPFetchTool returns a tool that performs a GET request and returns the
// response body as text.
func NewHTTPFetchTool(optFns ...func(o *FetchOptions)) *tool.FunctionTool {
	opts := FetchOptions{
		Client:    &http.Client{Timeout: 20 * time.Second},
		UserAgent: "agentcore/1.0",
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return tool.NewFunctionTool(
		"http_fetch",
		"Fetch a URL via HTTP GET and return the response body.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{"type": "string", "description": "Absolute http(s) URL to fetch"},
			},
			"required": []string{"url"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, args["url"].(string), nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("User-Agent", opts.UserAgent)

			resp, err := opts.Client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 400 {
				return nil, fmt.Errorf("http status %d for %s", resp.StatusCode, args["url"])
			}

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
			if err != nil {
				return nil, err
			}
			if len(body) > maxFetchBytes {
				return string(body[:maxFetchBytes]) + "\n...[truncated]", nil
			}
			return string(body), nil
		},
	)
}
