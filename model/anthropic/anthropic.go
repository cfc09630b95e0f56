// Package anthropic provides a backend adapter for the Anthropic Claude API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/model"
)

// Options configures the Anthropic adapter (model id, max tokens, API key).
type Options struct {
	Model     anthropic.Model
	MaxTokens int64
	APIKey    string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: 4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: 4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

// Generate implements model.Model. It adapts the Anthropic Messages API (with
// tool use) into the normalized Response shape and classifies API failures
// into the transient/fatal taxonomy.
func (m *Model) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	params := anthropic.MessageNewParams{
		Model:     m.opts.Model,
		Messages:  m.buildMessages(req.Messages),
		MaxTokens: m.maxTokens(req.Params),
	}

	if req.Params.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Params.Temperature)
	}

	if systemBlocks := m.extractSystemBlocks(req.Messages); len(systemBlocks) > 0 {
		params.System = systemBlocks
	}

	if len(req.Tools) > 0 {
		params.Tools = m.buildTools(req.Tools)
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}

	out := &model.Response{
		FinishReason: normalizeStopReason(string(resp.StopReason)),
		Usage: model.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Text += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			id := toolBlock.ID
			if id == "" {
				id = core.NewID()
			}
			out.ActionRequests = append(out.ActionRequests, core.ActionRequest{
				ID:        id,
				Name:      toolBlock.Name,
				Arguments: json.RawMessage(toolBlock.Input),
			})
		}
	}

	return out, nil
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: string(m.opts.Model), Provider: "anthropic"}
}

func (m *Model) maxTokens(params model.GenerationParams) int64 {
	if params.MaxTokens > 0 {
		return params.MaxTokens
	}
	return m.opts.MaxTokens
}

// buildMessages converts the transcript to Anthropic message format. System
// messages are handled separately; tool-role messages become user messages
// carrying tool_result blocks, as the Messages API requires.
func (m *Model) buildMessages(conv core.Conversation) []anthropic.MessageParam {
	var messages []anthropic.MessageParam

	for _, msg := range conv {
		switch msg.Role {
		case core.RoleSystem:
			continue
		case core.RoleAssistant:
			var content []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				content = append(content, anthropic.NewTextBlock(msg.Content))
			}
			for _, req := range msg.ActionRequests {
				var input any
				if len(req.Arguments) > 0 {
					if err := json.Unmarshal(req.Arguments, &input); err != nil {
						input = string(req.Arguments)
					}
				}
				content = append(content, anthropic.NewToolUseBlock(req.ID, input, req.Name))
			}
			if len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}
		case core.RoleTool:
			var content []anthropic.ContentBlockParamUnion
			for _, res := range msg.ActionResults {
				text := res.Output
				if !res.Success {
					text = res.Error
				}
				content = append(content, anthropic.NewToolResultBlock(res.RequestID, text, !res.Success))
			}
			if len(content) > 0 {
				messages = append(messages, anthropic.NewUserMessage(content...))
			}
		default:
			if msg.Content != "" {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
			}
		}
	}

	return messages
}

func (m *Model) extractSystemBlocks(conv core.Conversation) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, msg := range conv {
		if msg.Role == core.RoleSystem && msg.Content != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: msg.Content})
		}
	}
	return blocks
}

// buildTools converts tool definitions to the Anthropic tool format.
func (m *Model) buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if tool.Parameters != nil {
			if properties, ok := tool.Parameters["properties"]; ok {
				inputSchema.Properties = properties
			}
			switch required := tool.Parameters["required"].(type) {
			case []string:
				inputSchema.Required = required
			case []any:
				for _, r := range required {
					if s, ok := r.(string); ok {
						inputSchema.Required = append(inputSchema.Required, s)
					}
				}
			}
		}

		out[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: inputSchema,
			},
		}
	}

	return out
}

// normalizeStopReason maps Anthropic stop reasons onto the normalized finish
// constants.
func normalizeStopReason(reason string) string {
	switch reason {
	case "max_tokens":
		return model.FinishLength
	case "tool_use":
		return model.FinishToolUse
	default:
		return model.FinishStop
	}
}

// classify maps SDK errors onto the transient/fatal taxonomy by status code.
func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return model.ClassifyStatus(apiErr.StatusCode, fmt.Errorf("anthropic api error: %w", err))
	}
	return model.Transient(fmt.Errorf("anthropic api error: %w", err))
}
