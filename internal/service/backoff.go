package service

import (
	"context"
	"time"

	"github.com/dalfonso89/travel-assistant-api/internal/llm"
	"github.com/dalfonso89/travel-assistant-api/internal/logger"

	"github.com/sirupsen/logrus"
)

const (
	OverloadedReply = "The assistant is busy right now. Please try again in a moment."
	FailureReply    = "Sorry, something went wrong while generating a reply. Please try again."
)

// DefaultBackoffDelays bounds invocation at three attempts
var DefaultBackoffDelays = []time.Duration{400 * time.Millisecond, 800 * time.Millisecond, 1500 * time.Millisecond}

// InvocationOutcome tells the caller whether the reply came from the model
type InvocationOutcome string

const (
	OutcomeReplied    InvocationOutcome = "replied"
	OutcomeOverloaded InvocationOutcome = "overloaded"
	OutcomeFailed     InvocationOutcome = "failed"
)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the production SleepFunc
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// OverloadBackoff retries a model call only while the backend reports overload.
// One attempt is made per configured delay; the delay follows a failed attempt.
type OverloadBackoff struct {
	completer llm.Completer
	delays    []time.Duration
	sleep     SleepFunc
	logger    *logger.Logger
	observer  Observer
}

func NewOverloadBackoff(completer llm.Completer, delays []time.Duration, sleep SleepFunc, log *logger.Logger, observer Observer) *OverloadBackoff {
	if len(delays) == 0 {
		delays = DefaultBackoffDelays
	}
	if sleep == nil {
		sleep = Sleep
	}
	if log == nil {
		log = logger.Discard()
	}
	return &OverloadBackoff{completer: completer, delays: delays, sleep: sleep, logger: log, observer: observerOrNoop(observer)}
}

// Invoke always returns text: the model's reply or a fallback message
func (b *OverloadBackoff) Invoke(ctx context.Context, messages []llm.Message) string {
	reply, _ := b.InvokeWithOutcome(ctx, messages)
	return reply
}

func (b *OverloadBackoff) InvokeWithOutcome(ctx context.Context, messages []llm.Message) (string, InvocationOutcome) {
	var reply string
	outcome := b.retry(ctx, func(ctx context.Context) error {
		var err error
		reply, err = b.completer.Complete(ctx, messages)
		return err
	})
	if outcome != OutcomeReplied {
		return fallbackReply(outcome), outcome
	}
	return reply, outcome
}

// InvokeTools offers tools to the model under the same overload policy. A completer that cannot
// take tools answers in plain text. On failure the reply holds the fallback text.
func (b *OverloadBackoff) InvokeTools(ctx context.Context, messages []llm.Message, tools []llm.Tool, choice llm.ToolChoice) (llm.Reply, InvocationOutcome) {
	toolCompleter, ok := b.completer.(llm.ToolCompleter)
	if !ok || len(tools) == 0 {
		text, outcome := b.InvokeWithOutcome(ctx, messages)
		return llm.Reply{Content: text}, outcome
	}

	var reply llm.Reply
	outcome := b.retry(ctx, func(ctx context.Context) error {
		var err error
		reply, err = toolCompleter.CompleteWithTools(ctx, messages, tools, choice)
		return err
	})
	if outcome != OutcomeReplied {
		return llm.Reply{Content: fallbackReply(outcome)}, outcome
	}
	return reply, outcome
}

// retry makes one attempt per configured delay and stops at the first non-overload error
func (b *OverloadBackoff) retry(ctx context.Context, attempt func(context.Context) error) InvocationOutcome {
	attempts := len(b.delays)

	for try := 1; try <= attempts; try++ {
		err := attempt(ctx)
		if err == nil {
			b.observer.ModelInvocation(string(OutcomeReplied))
			return OutcomeReplied
		}

		entry := b.logger.WithFields(logrus.Fields{"attempt": try, "max_attempts": attempts, "error": err})
		if !llm.IsOverloaded(err) {
			entry.Warn("Model call failed")
			b.observer.ModelInvocation(string(OutcomeFailed))
			return OutcomeFailed
		}
		if try == attempts {
			entry.Warn("Model still overloaded, giving up")
			break
		}

		delay := b.delays[try-1]
		entry.WithField("delay", delay.String()).Info("Model overloaded, backing off")
		if err := b.sleep(ctx, delay); err != nil {
			entry.WithError(err).Warn("Backoff interrupted")
			break
		}
	}

	b.observer.ModelInvocation(string(OutcomeOverloaded))
	return OutcomeOverloaded
}

func fallbackReply(outcome InvocationOutcome) string {
	if outcome == OutcomeFailed {
		return FailureReply
	}
	return OverloadedReply
}
