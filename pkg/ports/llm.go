package ports

import "context"

// Conversation message roles, matching the teacher's agent.ConversationMessage
// role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of a chat request sent to the language model.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall // set on assistant messages that invoked tools
	ToolCallID string     // set on tool-result messages
	ToolName   string     // set on tool-result messages
}

// ToolDefinition declares one callable tool with a JSON Schema parameter spec
// (spec §4.4's "two declared tools with typed parameters").
type ToolDefinition struct {
	Name             string
	Description      string
	ParametersSchema string // JSON Schema document
}

// ToolCall is the model's request to invoke a declared tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON object
}

// ChatRequest is one call to LanguageModel.Chat.
type ChatRequest struct {
	Messages    []Message
	Tools       []ToolDefinition // nil/empty = no tool-use offered
	Temperature float64
	MaxTokens   int
}

// ChatResponse is the model's reply. Exactly one of Text or ToolCalls is
// meaningfully populated per turn — a response with ToolCalls may still
// carry accompanying Text (some providers emit both).
type ChatResponse struct {
	Text      string
	ToolCalls []ToolCall
}

// LanguageModel is the capability contract for chat, tool-calling, and
// embeddings (spec §2 C1).
type LanguageModel interface {
	// Chat sends a conversation (optionally with tools) and returns the
	// model's reply.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)

	// Embed returns one embedding vector per input string. The llm.Client
	// implementation sends inputs to the provider in chunks of at most 512.
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}
