// Package llm adapts the configured chat/embedding provider (Anthropic,
// OpenAI, or an OpenAI-compatible custom endpoint) to the ports.LanguageModel
// capability contract. Grounded on the teacher's pkg/llm.Client being the
// sole owner of provider wiring for pkg/agent, but replacing the gRPC
// sidecar call (teacher calls out to a Python process) with direct SDK
// calls, the pattern every LLM-touching repo in the pack uses instead of a
// sidecar.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"

	"github.com/agentbus/core/pkg/apierrors"
	"github.com/agentbus/core/pkg/config"
	"github.com/agentbus/core/pkg/ports"
)

// Client implements ports.LanguageModel over the configured provider.
type Client struct {
	cfg        config.LLMConfig
	anthropic  *anthropic.Client
	openai     *openai.Client
	embedModel string
}

// New builds a Client from cfg. Provider selects which SDK backs Chat;
// Embed always uses an OpenAI-compatible client, since Anthropic exposes no
// embeddings endpoint — callers that need embeddings with an
// anthropic-only deployment get ports.ErrUnavailable, which
// pkg/discovery's semantic branch already treats as "skip silently"
// (spec §4.8.1).
func New(cfg config.LLMConfig) *Client {
	c := &Client{cfg: cfg, embedModel: cfg.EmbeddingModel}

	switch cfg.Provider {
	case "anthropic":
		opts := []anthropicoption.RequestOption{anthropicoption.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropicoption.WithBaseURL(cfg.BaseURL))
		}
		client := anthropic.NewClient(opts...)
		c.anthropic = &client
	case "openai", "custom":
		opts := []openaioption.RequestOption{openaioption.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, openaioption.WithBaseURL(cfg.BaseURL))
		}
		client := openai.NewClient(opts...)
		c.openai = &client
	}
	return c
}

// Chat dispatches to the configured provider's chat/tool-use endpoint.
func (c *Client) Chat(ctx context.Context, req ports.ChatRequest) (ports.ChatResponse, error) {
	switch c.cfg.Provider {
	case "anthropic":
		return c.chatAnthropic(ctx, req)
	case "openai", "custom":
		return c.chatOpenAI(ctx, req)
	default:
		return ports.ChatResponse{}, apierrors.New(apierrors.KindConfig, "unknown_llm_provider",
			fmt.Sprintf("unsupported LLM_PROVIDER %q", c.cfg.Provider))
	}
}

// Embed returns one embedding vector per input, chunked into batches of at
// most 512 items issued sequentially (spec §5).
func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if c.openai == nil {
		return nil, ports.ErrUnavailable
	}

	const maxBatch = 512
	out := make([][]float32, 0, len(inputs))
	for start := 0; start < len(inputs); start += maxBatch {
		end := start + maxBatch
		if end > len(inputs) {
			end = len(inputs)
		}
		batch, err := c.embedBatch(ctx, inputs[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		resp, err := c.openai.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Model: c.embedModel,
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
		})
		if err == nil {
			out := make([][]float32, len(resp.Data))
			for i, d := range resp.Data {
				vec := make([]float32, len(d.Embedding))
				for j, f := range d.Embedding {
					vec[j] = float32(f)
				}
				out[i] = vec
			}
			return out, nil
		}
		lastErr = err
	}
	return nil, apierrors.Wrap(apierrors.KindLanguageModel, "embed_failed", "embedding request failed after retries", lastErr)
}

func (c *Client) chatAnthropic(ctx context.Context, req ports.ChatRequest) (ports.ChatResponse, error) {
	var system string
	var messages []anthropic.MessageParam
	for _, m := range req.Messages {
		switch m.Role {
		case ports.RoleSystem:
			system = m.Content
		case ports.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case ports.RoleAssistant:
			blocks := []anthropic.ContentBlockParamUnion{}
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input any
				_ = json.Unmarshal([]byte(tc.Arguments), &input)
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		case ports.RoleTool:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false),
			))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.ClarificationModel),
		MaxTokens: int64(req.MaxTokens),
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	for _, t := range req.Tools {
		var schema anthropic.ToolInputSchemaParam
		if t.ParametersSchema != "" {
			var raw map[string]any
			if err := json.Unmarshal([]byte(t.ParametersSchema), &raw); err == nil {
				if props, ok := raw["properties"]; ok {
					schema.Properties = props
				}
			}
		}
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: schema,
			},
		})
	}

	resp, err := c.anthropic.Messages.New(ctx, params)
	if err != nil {
		return ports.ChatResponse{}, apierrors.Wrap(apierrors.KindLanguageModel, "anthropic_chat_failed", "anthropic messages call failed", err)
	}

	out := ports.ChatResponse{}
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Text += b.Text
		case anthropic.ToolUseBlock:
			argsJSON, _ := json.Marshal(b.Input)
			out.ToolCalls = append(out.ToolCalls, ports.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: string(argsJSON),
			})
		}
	}
	return out, nil
}

func (c *Client) chatOpenAI(ctx context.Context, req ports.ChatRequest) (ports.ChatResponse, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	for _, m := range req.Messages {
		switch m.Role {
		case ports.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case ports.RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		case ports.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(m.Content))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				calls = append(calls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			asst := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
			if m.Content != "" {
				asst.Content.OfString = openai.String(m.Content)
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		case ports.RoleTool:
			messages = append(messages, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    c.cfg.ClarificationModel,
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	for _, t := range req.Tools {
		var schema map[string]any
		if t.ParametersSchema != "" {
			_ = json.Unmarshal([]byte(t.ParametersSchema), &schema)
		}
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  schema,
			},
		})
	}

	resp, err := c.openai.Chat.Completions.New(ctx, params)
	if err != nil {
		return ports.ChatResponse{}, apierrors.Wrap(apierrors.KindLanguageModel, "openai_chat_failed", "openai chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return ports.ChatResponse{}, apierrors.New(apierrors.KindLanguageModel, "openai_empty_response", "openai returned no choices")
	}

	choice := resp.Choices[0]
	out := ports.ChatResponse{Text: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ports.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}
