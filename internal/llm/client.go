// Package llm is a thin wrapper over an OpenAI-compatible chat completion endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalfonso89/travel-assistant-api/internal/config"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// ErrEmptyCompletion is returned when the model answers with no choices
var ErrEmptyCompletion = errors.New("llm returned no choices")

type Role string

const (
	RoleSystem    Role = openai.ChatMessageRoleSystem
	RoleUser      Role = openai.ChatMessageRoleUser
	RoleAssistant Role = openai.ChatMessageRoleAssistant
	RoleTool      Role = openai.ChatMessageRoleTool
)

// Message is one conversation turn. Assistant turns may carry ToolCalls; tool turns answer one by ToolCallID.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a function invocation requested by the model. Arguments is a JSON object.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool declares a function the model may call
type Tool struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
}

// ToolChoice controls whether the model may answer with tool calls
type ToolChoice string

const (
	ToolChoiceAuto ToolChoice = "auto"
	ToolChoiceNone ToolChoice = "none"
)

// Reply is a model turn: text, tool calls, or both
type Reply struct {
	Content   string
	ToolCalls []ToolCall
}

// Completer produces a single reply for a conversation
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// ToolCompleter is a Completer that can also offer tools to the model
type ToolCompleter interface {
	Completer
	CompleteWithTools(ctx context.Context, messages []Message, tools []Tool, choice ToolChoice) (Reply, error)
}

// Client implements Completer with go-openai
type Client struct {
	client *openai.Client
	model  string
}

func NewClient(configuration config.LLMConfig) *Client {
	clientConfig := openai.DefaultConfig(configuration.APIKey)
	if configuration.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(configuration.BaseURL, "/")
	}

	timeout := configuration.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	model := configuration.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &Client{client: openai.NewClientWithConfig(clientConfig), model: model}
}

func (c *Client) Model() string {
	return c.model
}

// Complete sends the conversation and returns the first choice's content
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	reply, err := c.CompleteWithTools(ctx, messages, nil, "")
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

// CompleteWithTools offers tools to the model. With no tools the choice is ignored.
func (c *Client) CompleteWithTools(ctx context.Context, messages []Message, tools []Tool, choice ToolChoice) (Reply, error) {
	request := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, message := range messages {
		request.Messages = append(request.Messages, toOpenAIMessage(message))
	}
	if len(tools) > 0 {
		request.Tools = make([]openai.Tool, 0, len(tools))
		for _, tool := range tools {
			request.Tools = append(request.Tools, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        tool.Name,
					Description: tool.Description,
					Parameters:  tool.Parameters,
				},
			})
		}
		if choice != "" {
			request.ToolChoice = string(choice)
		}
	}

	response, err := c.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return Reply{}, fmt.Errorf("llm: chat completion failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return Reply{}, ErrEmptyCompletion
	}

	message := response.Choices[0].Message
	reply := Reply{Content: message.Content}
	for _, call := range message.ToolCalls {
		if call.Type != "" && call.Type != openai.ToolTypeFunction {
			continue
		}
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{ID: call.ID, Name: call.Function.Name, Arguments: call.Function.Arguments})
	}
	return reply, nil
}

func toOpenAIMessage(message Message) openai.ChatCompletionMessage {
	converted := openai.ChatCompletionMessage{
		Role:       string(message.Role),
		Content:    message.Content,
		ToolCallID: message.ToolCallID,
	}
	for _, call := range message.ToolCalls {
		converted.ToolCalls = append(converted.ToolCalls, openai.ToolCall{
			ID:   call.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		})
	}
	return converted
}

// IsOverloaded reports whether err signals that the model backend is
// temporarily out of capacity, either through an HTTP status or its message.
func IsOverloaded(err error) bool {
	if err == nil {
		return false
	}

	var apiError *openai.APIError
	if errors.As(err, &apiError) && overloadStatus(apiError.HTTPStatusCode) {
		return true
	}
	var requestError *openai.RequestError
	if errors.As(err, &requestError) && overloadStatus(requestError.HTTPStatusCode) {
		return true
	}

	message := err.Error()
	lower := strings.ToLower(message)
	return strings.Contains(message, "503") ||
		strings.Contains(lower, "unavailable") ||
		strings.Contains(lower, "overloaded")
}

func overloadStatus(code int) bool {
	return code == http.StatusServiceUnavailable || code == 529
}
