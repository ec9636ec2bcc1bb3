package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dalfonso89/travel-assistant-api/internal/llm"
	"github.com/dalfonso89/travel-assistant-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestChat_CreatesSessionAndKeepsHistory(t *testing.T) {
	completer := &scriptedCompleter{reply: "ok"}
	chat := NewChatService(NewOverloadBackoff(completer, nil, noSleep, nil, nil), nil, nil, 4, nil)

	first, err := chat.Chat(context.Background(), models.ChatRequest{Message: "hello"})
	require.NoError(t, err)
	require.NotEmpty(t, first.SessionID)
	assert.Equal(t, "ok", first.Reply)

	for i := 0; i < 3; i++ {
		_, err := chat.Chat(context.Background(), models.ChatRequest{Message: fmt.Sprintf("turn %d", i), SessionID: first.SessionID})
		require.NoError(t, err)
	}

	last := completer.messages[len(completer.messages)-1]
	// system prompt, four remembered messages, the new user message
	require.Len(t, last, 6)
	assert.Equal(t, llm.RoleSystem, last[0].Role)
	assert.Equal(t, "turn 0", last[1].Content)
	assert.Equal(t, "turn 2", last[5].Content)
}

func TestChat_FallbackIsNotRemembered(t *testing.T) {
	completer := &scriptedCompleter{errs: []error{errors.New("bad request")}, reply: "fine"}
	chat := NewChatService(NewOverloadBackoff(completer, nil, noSleep, nil, nil), nil, nil, 10, nil)

	response, err := chat.Chat(context.Background(), models.ChatRequest{Message: "hi", SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, FailureReply, response.Reply)
	assert.Equal(t, "s1", response.SessionID)

	_, err = chat.Chat(context.Background(), models.ChatRequest{Message: "again", SessionID: "s1"})
	require.NoError(t, err)
	assert.Len(t, completer.messages[1], 2)
}

func TestChat_RejectsEmptyMessage(t *testing.T) {
	chat := NewChatService(NewOverloadBackoff(&scriptedCompleter{}, nil, noSleep, nil, nil), nil, nil, 0, nil)
	_, err := chat.Chat(context.Background(), models.ChatRequest{Message: "  "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

type concurrencyProbe struct {
	mu      sync.Mutex
	active  int
	maxSeen int
}

func (p *concurrencyProbe) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	p.mu.Lock()
	p.active++
	if p.active > p.maxSeen {
		p.maxSeen = p.active
	}
	p.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	p.mu.Lock()
	p.active--
	p.mu.Unlock()
	return "ok", nil
}

func TestChat_SerializesSameSession(t *testing.T) {
	probe := &concurrencyProbe{}
	chat := NewChatService(NewOverloadBackoff(probe, nil, noSleep, nil, nil), nil, nil, 10, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := chat.Chat(context.Background(), models.ChatRequest{Message: fmt.Sprintf("m%d", i), SessionID: "shared"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, probe.maxSeen)
}

func TestSessionStore(t *testing.T) {
	now := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	store := NewSessionStore(func() time.Time { return now })

	a := store.GetOrCreate("a")
	assert.Same(t, a, store.GetOrCreate("a"))
	anonymous := store.GetOrCreate("")
	assert.NotEmpty(t, anonymous.ID)
	assert.Equal(t, 2, store.Len())

	now = now.Add(2 * time.Hour)
	store.GetOrCreate("a")
	assert.Equal(t, 1, store.Evict(time.Hour))
	assert.Equal(t, 1, store.Len())
}

func TestSessionStoreConcurrentGetOrCreate(t *testing.T) {
	store := NewSessionStore(nil)
	sessions := make([]*Session, 20)

	var wg sync.WaitGroup
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i] = store.GetOrCreate("same")
		}(i)
	}
	wg.Wait()

	for _, session := range sessions {
		assert.Same(t, sessions[0], session)
	}
}
