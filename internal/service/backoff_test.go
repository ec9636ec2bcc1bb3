package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalfonso89/travel-assistant-api/internal/llm"

	"github.com/stretchr/testify/assert"
)

type recordingSleep struct {
	delays []time.Duration
	err    error
}

func (r *recordingSleep) Sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return r.err
}

var prompt = []llm.Message{{Role: llm.RoleUser, Content: "hello"}}

func TestBackoff_RetriesOverloadThenSucceeds(t *testing.T) {
	completer := &scriptedCompleter{errs: []error{errors.New("status 503"), errors.New("model overloaded")}, reply: "hi"}
	sleeper := &recordingSleep{}
	backoff := NewOverloadBackoff(completer, nil, sleeper.Sleep, nil, nil)

	reply, outcome := backoff.InvokeWithOutcome(context.Background(), prompt)
	assert.Equal(t, "hi", reply)
	assert.Equal(t, OutcomeReplied, outcome)
	assert.Equal(t, 3, completer.calls)
	assert.Equal(t, []time.Duration{400 * time.Millisecond, 800 * time.Millisecond}, sleeper.delays)
}

func TestBackoff_ExhaustedReturnsOverloadedReply(t *testing.T) {
	overloaded := errors.New("Service Unavailable")
	completer := &scriptedCompleter{errs: []error{overloaded, overloaded, overloaded, overloaded}}
	sleeper := &recordingSleep{}
	backoff := NewOverloadBackoff(completer, nil, sleeper.Sleep, nil, nil)

	assert.Equal(t, OverloadedReply, backoff.Invoke(context.Background(), prompt))
	assert.Equal(t, 3, completer.calls)
	assert.Len(t, sleeper.delays, 2)
}

func TestBackoff_NonTransientErrorIsNotRetried(t *testing.T) {
	completer := &scriptedCompleter{errs: []error{errors.New("invalid api key")}}
	sleeper := &recordingSleep{}
	backoff := NewOverloadBackoff(completer, nil, sleeper.Sleep, nil, nil)

	reply, outcome := backoff.InvokeWithOutcome(context.Background(), prompt)
	assert.Equal(t, FailureReply, reply)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, 1, completer.calls)
	assert.Empty(t, sleeper.delays)
}

func TestBackoff_CancelledDuringDelay(t *testing.T) {
	completer := &scriptedCompleter{errs: []error{errors.New("503"), errors.New("503")}, reply: "late"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backoff := NewOverloadBackoff(completer, []time.Duration{time.Hour, time.Hour}, Sleep, nil, nil)

	start := time.Now()
	reply, outcome := backoff.InvokeWithOutcome(ctx, prompt)
	assert.Equal(t, OverloadedReply, reply)
	assert.Equal(t, OutcomeOverloaded, outcome)
	assert.Equal(t, 1, completer.calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSleepWaits(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}
