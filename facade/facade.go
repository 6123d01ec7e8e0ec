// Package facade provides Agent, a stateful wrapper around one conversation
// session: it owns the session's configuration and message history,
// manages the steering/follow-up queues, enforces the single-flight
// invariant across activations, and fans outward LoopEvents out to
// subscribed listeners. It has no equivalent in the teacher repo (which
// exposes the loop directly to its TUI); it is grounded on the original
// implementation's pi_agent/agent.py Agent class, translated from asyncio
// coroutines to blocking Go calls plus a context.Context cancel-token.
package facade

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fwojciec/agentruntime"
	"github.com/fwojciec/agentruntime/agent"
	"github.com/fwojciec/agentruntime/config"
	"github.com/fwojciec/agentruntime/eventstream"
	"github.com/fwojciec/agentruntime/registry"
)

// State is a point-in-time snapshot of everything an Agent tracks beyond
// its message history, suitable for driving a UI.
type State struct {
	SystemPrompt     string
	Model            agentruntime.Model
	ThinkingLevel    agentruntime.ThinkingLevel
	Tools            []agentruntime.Tool
	IsStreaming      bool
	StreamMessage    *agentruntime.AssistantMessage
	PendingToolCalls map[string]struct{}
	Error            string
}

// Agent owns one conversation session: its configuration, message history,
// steering/follow-up queues, and listener subscriptions. A single Agent
// runs at most one activation at a time; Prompt and Continue block until
// the activation completes, matching the original's coroutine-based
// _run_loop. Callers that want non-blocking behavior should invoke Prompt/
// Continue from their own goroutine and use WaitForIdle or Subscribe to
// observe progress.
type Agent struct {
	registry *registry.Registry
	executor agentruntime.ToolExecutor
	cfg      *config.Config

	mu       sync.Mutex
	session  agentruntime.Session
	state    State
	steering []agentruntime.Message
	followUp []agentruntime.Message

	steeringMode config.DrainMode
	followUpMode config.DrainMode

	listenersMu sync.Mutex
	listeners   map[int]func(agentruntime.LoopEvent)
	nextID      int

	activationMu sync.Mutex // held for the duration of Prompt/Continue
	streaming    bool
	cancel       context.CancelFunc
	idle         chan struct{}
}

// New creates an idle Agent bound to reg (used to look up a Provider by
// the current model's API tag) and executor (used to run the tools
// offered via SetTools). Pass config.New() for default retry/timeout/queue
// behavior.
func New(reg *registry.Registry, executor agentruntime.ToolExecutor, cfg *config.Config) *Agent {
	idle := make(chan struct{})
	close(idle)
	return &Agent{
		registry:     reg,
		executor:     executor,
		cfg:          cfg,
		steeringMode: cfg.SteeringMode,
		followUpMode: cfg.FollowUpMode,
		listeners:    make(map[int]func(agentruntime.LoopEvent)),
		idle:         idle,
		state: State{
			PendingToolCalls: make(map[string]struct{}),
		},
	}
}

// State returns a copy of the agent's current observable state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	pending := make(map[string]struct{}, len(a.state.PendingToolCalls))
	for id := range a.state.PendingToolCalls {
		pending[id] = struct{}{}
	}
	st := a.state
	st.PendingToolCalls = pending
	return st
}

// Messages returns a copy of the session's message history.
func (a *Agent) Messages() []agentruntime.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]agentruntime.Message, len(a.session.Messages))
	copy(out, a.session.Messages)
	return out
}

// Subscribe registers fn to receive every LoopEvent emitted by subsequent
// activations. The returned function removes the subscription; it is safe
// to call more than once.
func (a *Agent) Subscribe(fn func(agentruntime.LoopEvent)) func() {
	a.listenersMu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.listenersMu.Lock()
			delete(a.listeners, id)
			a.listenersMu.Unlock()
		})
	}
}

func (a *Agent) SetSystemPrompt(s string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session.SystemPrompt = s
	a.state.SystemPrompt = s
}

func (a *Agent) SetModel(m agentruntime.Model) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Model = m
}

func (a *Agent) SetThinkingLevel(l agentruntime.ThinkingLevel) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.ThinkingLevel = l
}

func (a *Agent) SetTools(tools []agentruntime.Tool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Tools = tools
}

func (a *Agent) ReplaceMessages(msgs []agentruntime.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session.Messages = append([]agentruntime.Message(nil), msgs...)
}

func (a *Agent) AppendMessage(m agentruntime.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session.Messages = append(a.session.Messages, m)
}

// Steer appends m to the steering queue, drained mid-activation between
// tool batches and at turn boundaries.
func (a *Agent) Steer(m agentruntime.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.steering = append(a.steering, m)
}

// FollowUp appends m to the follow-up queue, drained only once an
// activation's inner loop has fully settled (no more tool calls and no
// pending steering).
func (a *Agent) FollowUp(m agentruntime.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.followUp = append(a.followUp, m)
}

func (a *Agent) SetSteeringMode(mode config.DrainMode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.steeringMode = mode
}

func (a *Agent) SetFollowUpMode(mode config.DrainMode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.followUpMode = mode
}

func (a *Agent) ClearSteeringQueue() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.steering = nil
}

func (a *Agent) ClearFollowUpQueue() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.followUp = nil
}

func (a *Agent) ClearAllQueues() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.steering = nil
	a.followUp = nil
}

// Reset clears messages, queues, and transient state, leaving system
// prompt, model, thinking level, and tools untouched.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session.Messages = nil
	a.steering = nil
	a.followUp = nil
	a.state.IsStreaming = false
	a.state.StreamMessage = nil
	a.state.PendingToolCalls = make(map[string]struct{})
	a.state.Error = ""
}

// Abort cancels the in-flight activation's context, if any. Idempotent and
// safe to call when idle.
func (a *Agent) Abort() {
	a.activationMu.Lock()
	cancel := a.cancel
	a.activationMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// WaitForIdle blocks until no activation is in flight, or ctx is done.
func (a *Agent) WaitForIdle(ctx context.Context) error {
	a.activationMu.Lock()
	idle := a.idle
	a.activationMu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Agent) dequeueSteering() []agentruntime.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return dequeue(&a.steering, a.steeringMode)
}

func (a *Agent) dequeueFollowUp() []agentruntime.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return dequeue(&a.followUp, a.followUpMode)
}

func dequeue(queue *[]agentruntime.Message, mode config.DrainMode) []agentruntime.Message {
	if len(*queue) == 0 {
		return nil
	}
	if mode == config.DrainOne {
		first := (*queue)[0]
		*queue = (*queue)[1:]
		return []agentruntime.Message{first}
	}
	out := *queue
	*queue = nil
	return out
}

// Prompt converts input into one or more user messages (a string is
// wrapped as a single UserMessage with images appended as ImageBlocks), a
// single Message is used as-is, and a []Message is used verbatim. The
// messages are appended directly to the session before the activation
// starts, so the very first turn already sees them as context. It blocks
// until the activation completes and returns ErrAlreadyStreaming if one is
// already in flight.
func (a *Agent) Prompt(ctx context.Context, input any, images ...agentruntime.ImageBlock) error {
	msgs, err := toMessages(input, images)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.session.Messages = append(a.session.Messages, msgs...)
	a.mu.Unlock()

	return a.activate(ctx, nil)
}

// Continue resumes an activation without a new prompt, seeding it from
// whatever is currently queued in the steering and follow-up queues
// (steering first). It returns ErrCannotContinue if the history is empty,
// or if the last message is an assistant message and both queues are
// empty.
func (a *Agent) Continue(ctx context.Context) error {
	a.mu.Lock()
	if len(a.session.Messages) == 0 {
		a.mu.Unlock()
		return agentruntime.ErrCannotContinue
	}
	last := a.session.Messages[len(a.session.Messages)-1]
	_, lastIsAssistant := last.(agentruntime.AssistantMessage)
	queuesEmpty := len(a.steering) == 0 && len(a.followUp) == 0
	if lastIsAssistant && queuesEmpty {
		a.mu.Unlock()
		return agentruntime.ErrCannotContinue
	}
	a.mu.Unlock()

	seed := a.dequeueSteering()
	seed = append(seed, a.dequeueFollowUp()...)

	return a.activate(ctx, seed)
}

func (a *Agent) activate(ctx context.Context, seed []agentruntime.Message) error {
	a.activationMu.Lock()
	if a.streaming {
		a.activationMu.Unlock()
		return agentruntime.ErrAlreadyStreaming
	}
	a.streaming = true
	activationCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.idle = make(chan struct{})
	idle := a.idle
	a.activationMu.Unlock()

	a.mu.Lock()
	a.state.IsStreaming = true
	a.state.StreamMessage = nil
	a.state.Error = ""
	model := a.state.Model
	thinkingLevel := a.state.ThinkingLevel
	tools := a.state.Tools
	a.mu.Unlock()

	defer func() {
		a.activationMu.Lock()
		a.streaming = false
		a.cancel = nil
		close(idle)
		a.activationMu.Unlock()

		a.mu.Lock()
		a.state.IsStreaming = false
		a.state.StreamMessage = nil
		a.state.PendingToolCalls = make(map[string]struct{})
		a.mu.Unlock()
	}()

	provider, err := a.registry.Get(model.API)
	if err != nil {
		return fmt.Errorf("facade: %w", err)
	}

	loop := agent.New(provider, a.executor, a.cfg)
	act := &agent.Activation{
		Session:       &a.session,
		Tools:         tools,
		Model:         model,
		ThinkingLevel: thinkingLevel,
		Seed:          seed,
		DrainSteering: a.dequeueSteering,
		DrainFollowUp: a.dequeueFollowUp,
	}

	// The loop's outward events are routed through an eventstream.Stream
	// rather than invoking a.dispatch directly: a single consumer goroutine
	// drains the stream and calls dispatch in push order, so listeners run
	// off Run's goroutine and a panicking listener is recovered there. The
	// stream is unbuffered, so each emit still waits until the consumer has
	// finished dispatching the previous event.
	bus := eventstream.New[agentruntime.LoopEvent, []agentruntime.Message]()
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range bus.Range() {
			a.dispatch(ev)
		}
	}()

	runErr := loop.Run(activationCtx, act, func(ev agentruntime.LoopEvent) {
		_ = bus.Push(ev)
	})
	bus.End()
	<-drained

	return runErr
}

// dispatch applies a loop event's effect on State (per the bullet list in
// the facade's state-mutation contract) and fans it out to subscribers,
// recovering from a panicking listener so dispatch always reaches every
// remaining listener and event.
func (a *Agent) dispatch(ev agentruntime.LoopEvent) {
	a.mu.Lock()
	switch e := ev.(type) {
	case agentruntime.EventMessageStart:
		if am, ok := e.Message.(agentruntime.AssistantMessage); ok {
			snap := am
			a.state.StreamMessage = &snap
		}
	case agentruntime.EventMessageUpdate:
		snap := e.Message
		a.state.StreamMessage = &snap
	case agentruntime.EventMessageEnd:
		a.state.StreamMessage = nil
	case agentruntime.EventToolExecutionStart:
		a.state.PendingToolCalls[e.CallID] = struct{}{}
	case agentruntime.EventToolExecutionEnd:
		delete(a.state.PendingToolCalls, e.CallID)
	case agentruntime.EventTurnEnd:
		if e.Message.ErrorMessage != "" {
			a.state.Error = e.Message.ErrorMessage
		}
	case agentruntime.EventAgentEnd:
		a.state.IsStreaming = false
		a.state.StreamMessage = nil
	}
	a.mu.Unlock()

	a.fanOut(ev)
}

func (a *Agent) fanOut(ev agentruntime.LoopEvent) {
	a.listenersMu.Lock()
	fns := make([]func(agentruntime.LoopEvent), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.listenersMu.Unlock()

	for _, fn := range fns {
		a.safeInvoke(fn, ev)
	}
}

func (a *Agent) safeInvoke(fn func(agentruntime.LoopEvent), ev agentruntime.LoopEvent) {
	defer func() {
		if r := recover(); r != nil {
			a.cfg.Logger.Warn("facade: listener panicked", "panic", r)
		}
	}()
	fn(ev)
}

func toMessages(input any, images []agentruntime.ImageBlock) ([]agentruntime.Message, error) {
	switch v := input.(type) {
	case string:
		content := []agentruntime.ContentBlock{agentruntime.TextBlock{Text: v}}
		for _, img := range images {
			content = append(content, img)
		}
		return []agentruntime.Message{agentruntime.UserMessage{Content: content, Timestamp: time.Now()}}, nil
	case agentruntime.Message:
		return []agentruntime.Message{v}, nil
	case []agentruntime.Message:
		return v, nil
	default:
		return nil, fmt.Errorf("facade: unsupported prompt input type %T", input)
	}
}
