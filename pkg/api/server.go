// Package api implements the HTTP surface of spec §6.1 over gin: dialogue
// start/continue, task status polling, the message broker endpoint, the
// matching webhook, and a liveness probe. Grounded on the teacher's gin
// Server/NewServer shape (pkg/api's gin-bound handler methods bound to a
// small collaborator-holding Server struct) and error taxonomy mapping
// idiom (a single writeError function at the HTTP boundary, grounded on the
// teacher's mapServiceError).
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentbus/core/pkg/apierrors"
	"github.com/agentbus/core/pkg/broker"
	"github.com/agentbus/core/pkg/busevents"
	"github.com/agentbus/core/pkg/dialogue"
	"github.com/agentbus/core/pkg/intake"
	"github.com/agentbus/core/pkg/matching"
	"github.com/agentbus/core/pkg/taskstate"
)

// Server is the HTTP API server (spec §6.1).
type Server struct {
	engine  *gin.Engine
	intake  *intake.Service
	broker  *broker.Broker
	state   *taskstate.Manager
	matcher *matching.Matcher
}

// NewServer builds a Server with all routes registered.
func NewServer(intakeSvc *intake.Service, brokerSvc *broker.Broker, state *taskstate.Manager, matcher *matching.Matcher) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{engine: engine, intake: intakeSvc, broker: brokerSvc, state: state, matcher: matcher}
	s.setupRoutes()
	return s
}

// Handler returns the underlying http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/dialogue/start", s.handleDialogueStart)
	api.POST("/dialogue/:id/continue", s.handleDialogueContinue)
	api.POST("/messages", s.handleSendMessage)
	api.GET("/tasks/:id/status", s.handleTaskStatus)
	api.POST("/webhooks/process-task", s.handleProcessTaskWebhook)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
}

type dialogueStartRequest struct {
	RequesterID string     `json:"requesterId" binding:"required"`
	Description string     `json:"description" binding:"required"`
	Tags        []string   `json:"tags"`
	Budget      *float64   `json:"budget"`
	Deadline    *time.Time `json:"deadline"`
}

func (s *Server) handleDialogueStart(c *gin.Context) {
	var req dialogueStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierrors.NewValidation("invalid_request_body", err.Error()))
		return
	}

	state, err := s.intake.InitiateTaskClarification(c.Request.Context(), dialogue.InitialRequest{
		RequesterID: req.RequesterID,
		Description: req.Description,
		Tags:        req.Tags,
		Budget:      req.Budget,
		Deadline:    req.Deadline,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

type dialogueContinueRequest struct {
	UserResponse string `json:"userResponse" binding:"required"`
}

func (s *Server) handleDialogueContinue(c *gin.Context) {
	var req dialogueContinueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierrors.NewValidation("invalid_request_body", err.Error()))
		return
	}

	state, err := s.intake.ContinueClarification(c.Request.Context(), c.Param("id"), req.UserResponse)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

type sendMessageRequest struct {
	TaskID     string `json:"taskId" binding:"required"`
	SenderID   string `json:"senderId" binding:"required"`
	SenderRole string `json:"senderRole" binding:"required,oneof=requester processor"`
	Content    any    `json:"content" binding:"required"`
}

func (s *Server) handleSendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierrors.NewValidation("invalid_request_body", err.Error()))
		return
	}

	var err error
	switch req.SenderRole {
	case "requester":
		err = s.broker.SendMessageToProcessor(c.Request.Context(), req.TaskID, req.SenderID, req.Content)
	case "processor":
		err = s.broker.SendMessageToRequester(c.Request.Context(), req.TaskID, req.SenderID, req.Content)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "message accepted"})
}

func (s *Server) handleTaskStatus(c *gin.Context) {
	id := c.Param("id")
	status, err := s.state.GetStatus(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"taskId": id, "status": status.Status})
}

func (s *Server) handleProcessTaskWebhook(c *gin.Context) {
	var evt busevents.TaskPendingMatchEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		writeError(c, apierrors.NewValidation("invalid_request_body", err.Error()))
		return
	}

	// Dispatched async: the webhook response does not wait on the matching
	// pipeline (spec §6.1: "202 dispatched async").
	go s.matcher.ProcessEvent(context.Background(), evt)
	c.JSON(http.StatusAccepted, gin.H{"message": "dispatched"})
}

// writeError maps err's apierrors.Kind to the HTTP boundary's status code
// and emits the spec §6.1 error envelope (spec §7: "a single handler maps
// the kind to the status code").
func writeError(c *gin.Context, err error) {
	kind := apierrors.KindOf(err)
	body := gin.H{"error": gin.H{"name": errorName(err), "message": err.Error()}}
	c.JSON(kind.HTTPStatus(), body)
}

func errorName(err error) string {
	if e, ok := apierrors.As(err); ok {
		return e.Name
	}
	return "unknown_error"
}
