package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/yukikurage/taskboard/internal/constants"
	"github.com/yukikurage/taskboard/internal/logging"
)

var (
	ErrAssistantNotConfigured = errors.New("assistant is not configured")
	ErrNoResponse             = errors.New("no response from model")
	ErrTooManyToolRounds      = errors.New("assistant exceeded tool call rounds")
)

// ChatClient is the part of *openai.Client the assistant uses.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Assistant runs a chat completion loop, executing the tool calls the model
// makes through a Dispatcher.
type Assistant struct {
	client     ChatClient
	model      string
	dispatcher *Dispatcher
	log        *logging.Logger
	now        func() time.Time
}

// NewAssistant creates a new Assistant. A nil client yields an assistant
// that returns ErrAssistantNotConfigured.
func NewAssistant(client ChatClient, model string, dispatcher *Dispatcher, log *logging.Logger) *Assistant {
	if model == "" {
		model = openai.GPT4o
	}
	if log == nil {
		log = logging.NopLogger()
	}
	return &Assistant{
		client:     client,
		model:      model,
		dispatcher: dispatcher,
		log:        log.WithComponent("assistant"),
		now:        time.Now,
	}
}

// NewOpenAIAssistant creates an Assistant backed by the OpenAI API.
func NewOpenAIAssistant(apiKey, model string, dispatcher *Dispatcher, log *logging.Logger) *Assistant {
	var client ChatClient
	if apiKey != "" {
		client = openai.NewClient(apiKey)
	}
	return NewAssistant(client, model, dispatcher, log)
}

// Configured reports whether the assistant has a model client.
func (a *Assistant) Configured() bool {
	return a.client != nil
}

// ToolCallRecord is one tool call executed while answering.
type ToolCallRecord struct {
	Tool   string  `json:"tool"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Reply is the assistant's answer and the tool calls made to produce it.
type Reply struct {
	Message   string                         `json:"message"`
	ToolCalls []ToolCallRecord               `json:"tool_calls"`
	History   []openai.ChatCompletionMessage `json:"-"`
}

// Chat answers the conversation in history on behalf of actorID.
func (a *Assistant) Chat(ctx context.Context, actorID string, history []openai.ChatCompletionMessage) (*Reply, error) {
	if a.client == nil {
		return nil, ErrAssistantNotConfigured
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: a.systemPrompt(),
	})
	messages = append(messages, history...)

	reply := &Reply{ToolCalls: []ToolCallRecord{}}
	tools := Tools()

	for round := 0; round < constants.MaxAgentToolRounds; round++ {
		resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       a.model,
			Messages:    messages,
			Tools:       tools,
			Temperature: 0.2,
		})
		if err != nil {
			return nil, fmt.Errorf("chat completion failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, ErrNoResponse
		}

		msg := resp.Choices[0].Message
		messages = append(messages, msg)

		if len(msg.ToolCalls) == 0 {
			reply.Message = msg.Content
			reply.History = messages[1:]
			return reply, nil
		}

		for _, call := range msg.ToolCalls {
			record, content := a.runTool(ctx, actorID, call)
			reply.ToolCalls = append(reply.ToolCalls, record)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    content,
				ToolCallID: call.ID,
			})
		}
	}

	return nil, ErrTooManyToolRounds
}

// runTool executes one call. Tool errors are reported back to the model as
// content so it can correct itself.
func (a *Assistant) runTool(ctx context.Context, actorID string, call openai.ToolCall) (ToolCallRecord, string) {
	record := ToolCallRecord{Tool: call.Function.Name}

	res, err := a.dispatcher.Dispatch(ctx, actorID, call.Function.Name, json.RawMessage(call.Function.Arguments))
	if err != nil {
		record.Error = err.Error()
		b, _ := json.Marshal(map[string]string{"error": err.Error()})
		return record, string(b)
	}

	record.Result = res
	b, err := json.Marshal(res)
	if err != nil {
		a.log.Error("failed to encode tool result", "tool", call.Function.Name, "error", err)
		return record, `{"error":"result could not be encoded"}`
	}
	return record, string(b)
}

func (a *Assistant) systemPrompt() string {
	return fmt.Sprintf(`You manage a task board for an administrator. Current time: %s.
Use the tools to create, assign, update, list and delete tasks and to recommend workers.
Task ids and worker ids are UUIDs; look them up with list_tasks or get_task_details instead of guessing.
Never set confirm=true on delete_task unless the user explicitly confirmed the deletion.
Answer concisely.`, a.now().Format(time.RFC3339))
}
