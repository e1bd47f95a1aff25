// Package dialogue implements the clarification dialogue engine (C4): a
// turn-based state machine driven by a language model with tool-calling,
// grounded on the teacher's pkg/agent/controller.IteratingController tool
// dispatch loop (storeMessages → ListTools → iterate → handle ToolCalls vs
// final-answer), adapted from a multi-iteration agent-execution loop to a
// single-exchange, two-tool clarification turn (spec.md §4.4).
package dialogue

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentbus/core/pkg/apierrors"
	"github.com/agentbus/core/pkg/models"
	"github.com/agentbus/core/pkg/ports"
	"github.com/agentbus/core/pkg/prompt"
	"github.com/agentbus/core/pkg/taskstate"
)

// cancellationKeywords, case-folded, that end a dialogue immediately
// (spec §4.4).
var cancellationKeywords = []string{"cancel", "stop", "abort", "nevermind", "forget it"}

// InitialRequest is the validated payload of POST /api/dialogue/start.
type InitialRequest struct {
	RequesterID string
	Description string
	Tags        []string
	Budget      *float64
	Deadline    *time.Time
}

// Engine is the dialogue engine (C4).
type Engine struct {
	llm      ports.LanguageModel
	prompts  *prompt.Catalog
	state    *taskstate.Manager
	maxTurns int
	ttl      time.Duration
}

func NewEngine(llm ports.LanguageModel, prompts *prompt.Catalog, state *taskstate.Manager, maxTurns int, ttl time.Duration) *Engine {
	return &Engine{llm: llm, prompts: prompts, state: state, maxTurns: maxTurns, ttl: ttl}
}

// StartDialogue validates req, seeds a new DialogueState, produces the
// first assistant question, persists, and returns the state (spec §4.4).
func (e *Engine) StartDialogue(ctx context.Context, req InitialRequest) (*models.DialogueState, error) {
	if req.RequesterID == "" {
		return nil, apierrors.NewValidation("missing_requester_id", "requesterId is required")
	}
	if len(strings.TrimSpace(req.Description)) < 10 {
		return nil, apierrors.NewValidation("description_too_short", "description must be at least 10 characters")
	}

	now := time.Now()
	st := &models.DialogueState{
		DialogueID:  uuid.NewString(),
		RequesterID: req.RequesterID,
		Stage:       models.StageGatheringCompetitors,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExtractedParams: models.ExtractedParams{
			InitialDescription: req.Description,
			Tags:               req.Tags,
		},
	}
	if req.Budget != nil {
		st.ExtractedParams.Budget = req.Budget
	}
	if req.Deadline != nil {
		st.ExtractedParams.Deadline = req.Deadline.Format(time.RFC3339)
	}

	systemPrompt, err := e.prompts.Get("dialogue.system")
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConfig, "prompt_load_failed", "failed loading system prompt", err)
	}
	userPrompt, err := e.prompts.Format("dialogue.initial_user", map[string]any{
		"requesterId": req.RequesterID,
		"description": req.Description,
		"tags_json":   req.Tags,
	})
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConfig, "prompt_format_failed", "failed formatting initial user prompt", err)
	}

	st.History = append(st.History,
		models.Turn{Role: models.TurnRoleSystem, Content: systemPrompt, Timestamp: now},
		models.Turn{Role: models.TurnRoleUser, Content: userPrompt, Timestamp: now},
	)

	if err := e.generateNextAssistantResponse(ctx, st); err != nil {
		return nil, err
	}

	if err := e.state.SaveDialogue(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// ProcessUserResponse appends a user turn, checks cancellation/max-turns
// guards, invokes the LM for the next turn, persists, and returns the state
// (spec §4.4).
func (e *Engine) ProcessUserResponse(ctx context.Context, dialogueID, userResponse string) (*models.DialogueState, error) {
	unlock := e.state.LockDialogue(dialogueID)
	defer unlock()

	st, err := e.state.GetDialogue(ctx, dialogueID)
	if err != nil {
		return nil, err
	}
	if st.Stage.IsTerminal() {
		return nil, apierrors.NewValidation("dialogue_terminal", "dialogue has already ended")
	}
	if strings.TrimSpace(userResponse) == "" {
		return nil, apierrors.NewValidation("empty_user_response", "userResponse must be at least 1 character")
	}

	now := time.Now()
	st.History = append(st.History, models.Turn{Role: models.TurnRoleUser, Content: userResponse, Timestamp: now})
	st.UpdatedAt = now

	if isCancellation(userResponse) {
		st.Stage = models.StageCancelled
		if err := e.state.SaveDialogue(ctx, st); err != nil {
			return nil, err
		}
		return st, nil
	}

	if countUserTurns(st.History) > e.maxTurns {
		st.Stage = models.StageFailed
		if err := e.state.SaveDialogue(ctx, st); err != nil {
			return nil, err
		}
		return st, nil
	}

	if err := e.generateNextAssistantResponse(ctx, st); err != nil {
		return nil, err
	}

	if err := e.state.SaveDialogue(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func isCancellation(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range cancellationKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func countUserTurns(history []models.Turn) int {
	n := 0
	for _, t := range history {
		if t.Role == models.TurnRoleUser {
			n++
		}
	}
	return n
}

// generateNextAssistantResponse drives one LM exchange: builds the chat
// request from history plus the two declared tools, dispatches any tool
// calls into state mutations, and appends the resulting turn(s). On
// success with tool calls, the assistant-visible prose comes from a
// deterministic fallback template rather than a second LM round-trip
// (spec §4.4/§9 "Fallback after tool calls").
func (e *Engine) generateNextAssistantResponse(ctx context.Context, st *models.DialogueState) error {
	req := ports.ChatRequest{
		Messages:    toChatMessages(st.History),
		Tools:       dialogueTools,
		Temperature: 0.5,
		MaxTokens:   1024,
	}

	resp, err := e.llm.Chat(ctx, req)
	now := time.Now()
	if err != nil {
		st.Stage = models.StageFailed
		st.History = appendApologyOnce(st.History, e.prompts, now)
		return nil //nolint:nilerr // spec §4.4: LM failure is recorded in state, not propagated
	}

	if len(resp.ToolCalls) == 0 {
		st.History = append(st.History, models.Turn{Role: models.TurnRoleAssistant, Content: resp.Text, Timestamp: now})
		return nil
	}

	toolCalls := make([]models.ToolCall, 0, len(resp.ToolCalls))
	toolResults := make([]models.ToolResult, 0, len(resp.ToolCalls))
	for _, tc := range resp.ToolCalls {
		toolCalls = append(toolCalls, models.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		result := dispatchTool(tc, st)
		toolResults = append(toolResults, result)
	}

	st.History = append(st.History,
		models.Turn{Role: models.TurnRoleAssistant, Content: "", ToolCalls: toolCalls, Timestamp: now},
		models.Turn{Role: models.TurnRoleTool, ToolResults: toolResults, Timestamp: now},
	)

	prose, err := renderStageTemplate(e.prompts, st)
	if err != nil {
		prose = "Thanks, let's continue."
	}
	st.History = append(st.History, models.Turn{Role: models.TurnRoleAssistant, Content: prose, Timestamp: now})
	return nil
}

func appendApologyOnce(history []models.Turn, prompts *prompt.Catalog, now time.Time) []models.Turn {
	apology, err := prompts.Get("dialogue.apology")
	if err != nil {
		apology = "Sorry, something went wrong. Please try again shortly."
	}
	if n := len(history); n > 0 && history[n-1].Role == models.TurnRoleAssistant && history[n-1].Content == apology {
		return history
	}
	return append(history, models.Turn{Role: models.TurnRoleAssistant, Content: apology, Timestamp: now})
}

func toChatMessages(history []models.Turn) []ports.Message {
	msgs := make([]ports.Message, 0, len(history))
	for _, t := range history {
		switch t.Role {
		case models.TurnRoleSystem:
			msgs = append(msgs, ports.Message{Role: ports.RoleSystem, Content: t.Content})
		case models.TurnRoleUser:
			msgs = append(msgs, ports.Message{Role: ports.RoleUser, Content: t.Content})
		case models.TurnRoleAssistant:
			calls := make([]ports.ToolCall, 0, len(t.ToolCalls))
			for _, c := range t.ToolCalls {
				calls = append(calls, ports.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments})
			}
			msgs = append(msgs, ports.Message{Role: ports.RoleAssistant, Content: t.Content, ToolCalls: calls})
		case models.TurnRoleTool:
			for _, r := range t.ToolResults {
				msgs = append(msgs, ports.Message{Role: ports.RoleTool, Content: r.Content, ToolCallID: r.ToolCallID, ToolName: r.Name})
			}
		}
	}
	return msgs
}
