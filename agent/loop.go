// Package agent orchestrates one activation of the conversation loop
// between a Provider and a ToolExecutor: turns, steering/follow-up queue
// drains, retry/backoff around the streaming call, and the tool-execution
// batch for each round of tool calls.
package agent

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/fwojciec/agentruntime"
	"github.com/fwojciec/agentruntime/config"
	"github.com/fwojciec/agentruntime/toolexec"
)

// Activation is the input to one Run: the session to extend, the tools on
// offer, and the queue drains that inject mid-turn and post-turn messages.
// DrainSteering and DrainFollowUp may be nil, in which case no queue is
// consulted and the loop behaves like a plain single-pass conversation.
type Activation struct {
	Session *agentruntime.Session
	Tools   []agentruntime.Tool

	// Model and ThinkingLevel select the provider-specific model ID and
	// reasoning depth for every turn of this activation; both are copied
	// straight into each agentruntime.Request.
	Model         agentruntime.Model
	ThinkingLevel agentruntime.ThinkingLevel

	// Seed, when non-nil, replaces the initial steering drain: the caller
	// (facade's Continue) has already dequeued these messages and they
	// should be appended without a further DrainSteering() call.
	Seed []agentruntime.Message

	DrainSteering func() []agentruntime.Message
	DrainFollowUp func() []agentruntime.Message
}

// Loop drives Activations to completion.
type Loop struct {
	provider agentruntime.Provider
	executor *toolexec.Executor
	cfg      *config.Config
	clock    Clock
}

// Option configures a Loop beyond what config.Config covers.
type Option func(*Loop)

// WithClock overrides the clock used for retry/backoff sleeps.
func WithClock(c Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// New creates a Loop. Pass config.New() for defaults.
func New(provider agentruntime.Provider, executor agentruntime.ToolExecutor, cfg *config.Config, opts ...Option) *Loop {
	l := &Loop{
		provider: provider,
		executor: toolexec.New(executor, cfg.ToolTimeout),
		cfg:      cfg,
		clock:    RealClock(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run drives one activation to completion, implementing the agent-loop
// algorithm: steering pre-drain, turn-by-turn streaming with retry/backoff,
// sequential tool execution with steering interruption, and an outer
// follow-up drain that restarts the inner loop. emit, if non-nil, receives
// every LoopEvent as it happens. Run returns the terminal error, if any; a
// non-nil error is also reflected in the final appended assistant message's
// StopReason (error or aborted).
func (l *Loop) Run(ctx context.Context, act *Activation, emit func(agentruntime.LoopEvent)) error {
	push(emit, agentruntime.EventAgentStart{})

	var newMessages []agentruntime.Message
	var runErr error

	pending := act.Seed
	if pending == nil {
		pending = l.drain(act.DrainSteering, l.cfg.SteeringMode)
	}

	firstTurn := true
outer:
	for {
		moreTools := true
		var steeringAfterTools []agentruntime.Message

		for moreTools || len(pending) > 0 {
			if !firstTurn {
				push(emit, agentruntime.EventTurnStart{})
			}
			firstTurn = false

			for _, m := range pending {
				push(emit, agentruntime.EventMessageStart{Message: m})
				push(emit, agentruntime.EventMessageEnd{Message: m})
				act.Session.Messages = append(act.Session.Messages, m)
				newMessages = append(newMessages, m)
			}
			pending = nil

			req := agentruntime.Request{
				Model:         act.Model.ID,
				Cost:          act.Model.Cost,
				SystemPrompt:  act.Session.SystemPrompt,
				Messages:      act.Session.Messages,
				Tools:         act.Tools,
				ThinkingLevel: act.ThinkingLevel,
			}
			msg, err := l.streamAssistant(ctx, req, emit)
			act.Session.Messages = append(act.Session.Messages, msg)
			newMessages = append(newMessages, msg)
			act.Session.UpdatedAt = time.Now()

			if msg.StopReason == agentruntime.StopError || msg.StopReason == agentruntime.StopAborted {
				push(emit, agentruntime.EventTurnEnd{Message: msg})
				runErr = err
				break outer
			}

			var toolCalls []agentruntime.ToolCallBlock
			for _, block := range msg.Content {
				if tc, ok := block.(agentruntime.ToolCallBlock); ok {
					toolCalls = append(toolCalls, tc)
				}
			}
			moreTools = len(toolCalls) > 0

			var toolResults []agentruntime.ToolResultMessage
			if moreTools {
				results, steering := l.executor.Run(ctx, toolCalls, emit, func() []agentruntime.Message {
					return l.drain(act.DrainSteering, l.cfg.SteeringMode)
				})
				toolResults = results
				steeringAfterTools = steering
				for _, r := range results {
					act.Session.Messages = append(act.Session.Messages, r)
					newMessages = append(newMessages, r)
				}
				act.Session.UpdatedAt = time.Now()
			}

			push(emit, agentruntime.EventTurnEnd{Message: msg, ToolResults: toolResults})

			if len(steeringAfterTools) > 0 {
				pending = steeringAfterTools
			} else {
				pending = l.drain(act.DrainSteering, l.cfg.SteeringMode)
			}
		}

		followUp := l.drain(act.DrainFollowUp, l.cfg.FollowUpMode)
		if len(followUp) > 0 {
			pending = followUp
			continue
		}
		break
	}

	push(emit, agentruntime.EventAgentEnd{NewMessages: newMessages})
	return runErr
}

// drain pulls from a queue function and, in DrainOne mode, truncates the
// result to a single message so callers observe one queued message per
// drain regardless of how many the underlying queue is holding.
func (l *Loop) drain(fn func() []agentruntime.Message, mode config.DrainMode) []agentruntime.Message {
	if fn == nil {
		return nil
	}
	msgs := fn()
	if mode == config.DrainOne && len(msgs) > 1 {
		return msgs[:1]
	}
	return msgs
}

// streamAssistant wraps one adapter invocation with retry/backoff. Rate
// limit and timeout failures are retried up to cfg.MaxRetries times with
// exponential backoff; other failures propagate immediately. It always
// returns an AssistantMessage: on success, the adapter's own message; on
// exhausted retries or a non-retriable failure after streaming began, the
// partial message the adapter produced; on a failure before any content was
// received (e.g. the initial connection attempt), a synthesized message
// with StopReason=StopError or StopAborted.
func (l *Loop) streamAssistant(ctx context.Context, req agentruntime.Request, emit func(agentruntime.LoopEvent)) (agentruntime.AssistantMessage, error) {
	var lastErr error
	var lastMsg agentruntime.AssistantMessage
	havePartial := false

	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return abortedMessage(), ctx.Err()
		}

		msg, err := l.streamOnce(ctx, req, emit)
		if err == nil {
			return msg, nil
		}

		lastErr = err
		if msg.StopReason != "" || len(msg.Content) > 0 {
			lastMsg = msg
			havePartial = true
		}

		if ctx.Err() != nil {
			return abortedMessage(), ctx.Err()
		}
		if errors.Is(err, context.Canceled) {
			return abortedMessage(), err
		}

		retriable := errors.Is(err, context.DeadlineExceeded) || isRateLimited(err)
		if !retriable || attempt == l.cfg.MaxRetries {
			break
		}
		if sleepErr := l.clock.Sleep(ctx, backoffDelay(attempt, l.cfg.RetryDelay, l.cfg.MaxRetryDelay)); sleepErr != nil {
			return abortedMessage(), sleepErr
		}
	}

	if havePartial {
		return lastMsg, lastErr
	}
	return errorMessage(lastErr), lastErr
}

// streamOnce performs a single adapter invocation and drains its event
// stream, forwarding events as it goes. The returned message reflects
// whatever the adapter assembled, whether the call ultimately succeeded.
func (l *Loop) streamOnce(ctx context.Context, req agentruntime.Request, emit func(agentruntime.LoopEvent)) (agentruntime.AssistantMessage, error) {
	callCtx := ctx
	cancel := func() {}
	if l.cfg.LLMTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, l.cfg.LLMTimeout)
	}
	defer cancel()

	stream, err := l.provider.Stream(callCtx, req)
	if err != nil {
		return agentruntime.AssistantMessage{}, err
	}
	defer stream.Close()

	started := false
	for {
		ev, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			msg, _ := stream.Message()
			if !started {
				push(emit, agentruntime.EventMessageStart{Message: msg})
			}
			push(emit, agentruntime.EventMessageEnd{Message: msg})
			return msg, err
		}
		snapshot, _ := stream.Message()
		if !started {
			push(emit, agentruntime.EventMessageStart{Message: snapshot})
			started = true
		}
		push(emit, agentruntime.EventMessageUpdate{Event: ev, Message: snapshot})
	}

	msg, err := stream.Message()
	if err != nil {
		return agentruntime.AssistantMessage{}, err
	}
	if !started {
		push(emit, agentruntime.EventMessageStart{Message: msg})
	}
	push(emit, agentruntime.EventMessageEnd{Message: msg})
	return msg, nil
}

func push(emit func(agentruntime.LoopEvent), e agentruntime.LoopEvent) {
	if emit != nil {
		emit(e)
	}
}

func abortedMessage() agentruntime.AssistantMessage {
	return agentruntime.AssistantMessage{
		StopReason:   agentruntime.StopAborted,
		ErrorMessage: "request cancelled",
		Timestamp:    time.Now(),
	}
}

func errorMessage(err error) agentruntime.AssistantMessage {
	msg := "unknown error after retries"
	if err != nil {
		msg = err.Error()
	}
	return agentruntime.AssistantMessage{
		StopReason:   agentruntime.StopError,
		ErrorMessage: msg,
		Timestamp:    time.Now(),
	}
}

// isRateLimited does a deliberately simple substring match, matching the
// original implementation's own approach rather than parsing structured
// provider error codes.
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "rate") || strings.Contains(s, "limit") || strings.Contains(s, "429")
}

// backoffDelay computes base*2^attempt plus jitter in [0,1s), capped at max
// when max is positive.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	d := base * time.Duration(int64(1)<<uint(attempt))
	if max > 0 && d > max {
		d = max
	}
	d += time.Duration(rand.Int63n(int64(time.Second)))
	if max > 0 && d > max {
		d = max
	}
	return d
}
