package service

import (
	"context"
	"strings"

	"github.com/dalfonso89/travel-assistant-api/internal/llm"
	"github.com/dalfonso89/travel-assistant-api/internal/logger"
	"github.com/dalfonso89/travel-assistant-api/internal/models"

	"github.com/sirupsen/logrus"
)

const (
	DefaultHistorySize = 10

	// MaxToolRounds bounds how many times one turn may go back to the model with tool results
	MaxToolRounds = 3

	systemPrompt = `You are a friendly travel assistant. Help with accommodations, restaurants,
attractions, currency conversion and trip planning. Keep answers short and practical.
Use the tools for listings and money amounts instead of guessing.`
)

// ChatService keeps a bounded per-session history and calls the model through OverloadBackoff.
// With tools, the model may search listings and convert currencies before answering.
type ChatService struct {
	backoff     *OverloadBackoff
	sessions    *SessionStore
	tools       *ChatTools
	historySize int
	logger      *logger.Logger
}

// NewChatService accepts nil tools for a plain conversation
func NewChatService(backoff *OverloadBackoff, sessions *SessionStore, tools *ChatTools, historySize int, log *logger.Logger) *ChatService {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	if sessions == nil {
		sessions = NewSessionStore(nil)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &ChatService{backoff: backoff, sessions: sessions, tools: tools, historySize: historySize, logger: log}
}

// Chat answers one message. Only an empty message is an error; model failures become fallback text.
func (s *ChatService) Chat(ctx context.Context, request models.ChatRequest) (models.ChatResponse, error) {
	message := strings.TrimSpace(request.Message)
	if message == "" {
		return models.ChatResponse{}, ErrEmptyMessage
	}

	session := s.sessions.GetOrCreate(strings.TrimSpace(request.SessionID))
	session.Lock()
	defer session.Unlock()

	userMessage := llm.Message{Role: llm.RoleUser, Content: message}
	messages := make([]llm.Message, 0, s.historySize+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	messages = append(messages, session.History()...)
	messages = append(messages, userMessage)

	reply, outcome := s.converse(ctx, session.ID, messages)
	if outcome == OutcomeReplied {
		session.Append(s.historySize, userMessage, llm.Message{Role: llm.RoleAssistant, Content: reply})
	} else {
		s.logger.WithFields(logrus.Fields{"session_id": session.ID, "outcome": outcome}).Warn("Returning fallback reply")
	}

	return models.ChatResponse{Reply: reply, SessionID: session.ID}, nil
}

// converse runs the model, answering its tool calls until it replies in text.
// Only the final text reaches the session history.
func (s *ChatService) converse(ctx context.Context, sessionID string, messages []llm.Message) (string, InvocationOutcome) {
	if s.tools == nil {
		return s.backoff.InvokeWithOutcome(ctx, messages)
	}
	definitions := s.tools.Definitions()

	for round := 0; ; round++ {
		choice := llm.ToolChoiceAuto
		if round == MaxToolRounds {
			choice = llm.ToolChoiceNone
		}

		reply, outcome := s.backoff.InvokeTools(ctx, messages, definitions, choice)
		if outcome != OutcomeReplied || len(reply.ToolCalls) == 0 {
			return reply.Content, outcome
		}
		if round == MaxToolRounds {
			s.logger.WithField("session_id", sessionID).Warn("Model kept calling tools, giving up")
			if strings.TrimSpace(reply.Content) == "" {
				return FailureReply, OutcomeFailed
			}
			return reply.Content, outcome
		}

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: reply.Content, ToolCalls: reply.ToolCalls})
		for _, call := range reply.ToolCalls {
			result := s.tools.Call(ctx, call)
			s.logger.WithFields(logrus.Fields{
				"session_id": sessionID,
				"tool":       call.Name,
				"round":      round + 1,
			}).Debug("Answered tool call")
			messages = append(messages, llm.Message{Role: llm.RoleTool, ToolCallID: call.ID, Content: result})
		}
	}
}
