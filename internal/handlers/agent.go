package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sashabaranov/go-openai"
	"github.com/yukikurage/taskboard/internal/agent"
	apierrors "github.com/yukikurage/taskboard/internal/errors"
	"github.com/yukikurage/taskboard/internal/middleware"
)

// AgentHandler exposes the assistant tools over HTTP.
type AgentHandler struct {
	dispatcher *agent.Dispatcher
	assistant  *agent.Assistant
}

func NewAgentHandler(dispatcher *agent.Dispatcher, assistant *agent.Assistant) *AgentHandler {
	return &AgentHandler{
		dispatcher: dispatcher,
		assistant:  assistant,
	}
}

// ListTools returns the tool definitions
func (h *AgentHandler) ListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"tools":     agent.Tools(),
		"assistant": h.assistant != nil && h.assistant.Configured(),
	})
}

// CallTool runs one tool. The request body is the tool's JSON arguments.
func (h *AgentHandler) CallTool(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	res, err := h.dispatcher.Dispatch(c.Request.Context(), userID, c.Param("name"), body)
	if err != nil {
		if errors.Is(err, agent.ErrUnknownTool) {
			apierrors.NotFound(c, err.Error())
			return
		}
		apierrors.FromServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// Chat answers a conversation, running tool calls along the way
func (h *AgentHandler) Chat(c *gin.Context) {
	type ChatMessage struct {
		Role    string `json:"role" binding:"required,oneof=user assistant"`
		Content string `json:"content" binding:"required"`
	}
	type ChatRequest struct {
		Messages []ChatMessage `json:"messages" binding:"required,min=1,dive"`
	}

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}
	if h.assistant == nil || !h.assistant.Configured() {
		apierrors.ServiceUnavailable(c, "Assistant is not configured")
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.FromBindError(c, err)
		return
	}

	history := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		history[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	reply, err := h.assistant.Chat(c.Request.Context(), userID, history)
	if err != nil {
		switch {
		case errors.Is(err, agent.ErrAssistantNotConfigured):
			apierrors.ServiceUnavailable(c, "Assistant is not configured")
		case errors.Is(err, agent.ErrTooManyToolRounds), errors.Is(err, agent.ErrNoResponse):
			apierrors.InternalError(c, err.Error())
		default:
			apierrors.ServiceUnavailable(c, "Assistant request failed")
		}
		return
	}

	c.JSON(http.StatusOK, reply)
}
