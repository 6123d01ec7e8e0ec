package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	sdk "github.com/sashabaranov/go-openai"

	"github.com/fwojciec/agentruntime"
)

// stream adapts a Chat Completions SSE stream into [agentruntime.Stream].
// Unlike Anthropic's explicit content-block start/stop events, OpenAI's
// deltas carry no block-boundary signal: a text block is implicitly open
// from the first non-empty content delta until a tool-call delta or stream
// end, and each tool call is keyed by the index the delta assigns it (not
// necessarily its position in the assembled content).
type stream struct {
	ctx          context.Context
	sdk          ChatCompletionStream
	modelID      string
	apiTag       string
	normalizeIDs bool
	nameMap      map[string]string // sanitized -> canonical
	cost         agentruntime.ModelCost

	state     agentruntime.StreamState
	msg       agentruntime.AssistantMessage
	started   bool
	terminal  bool
	exhausted bool
	pending   []agentruntime.Event
	err       error

	textOpen  bool
	textIndex int
	textBuf   strings.Builder

	toolBlocks map[int]*toolCallBuf
	toolOrder  []int
}

// toolCallBuf accumulates one tool call's streamed fragments, keyed by the
// index OpenAI's delta assigns it.
type toolCallBuf struct {
	contentIndex int
	id           string
	name         string
	args         strings.Builder
	began        bool
	closed       bool
}

// Interface compliance check.
var _ agentruntime.Stream = (*stream)(nil)

func newStream(ctx context.Context, sdkStream ChatCompletionStream, modelID, apiTag string, normalizeIDs bool, nameMap map[string]string, cost agentruntime.ModelCost) *stream {
	return &stream{
		ctx:          ctx,
		sdk:          sdkStream,
		modelID:      modelID,
		apiTag:       apiTag,
		normalizeIDs: normalizeIDs,
		nameMap:      nameMap,
		cost:         cost,
		state:        agentruntime.StreamStateNew,
		toolBlocks:   make(map[int]*toolCallBuf),
		msg: agentruntime.AssistantMessage{
			API:      apiTag,
			Provider: "openai",
			ModelID:  modelID,
		},
	}
}

// Next reads the next semantic event. The first call always returns
// EventStart; the terminal EventDone or EventError is returned exactly
// once, after which Next reports io.EOF or the stored error respectively.
func (s *stream) Next() (agentruntime.Event, error) {
	if s.terminal {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}

	if !s.started {
		s.started = true
		s.state = agentruntime.StreamStateStreaming
		return agentruntime.EventStart{Partial: s.msg}, nil
	}

	for {
		if len(s.pending) > 0 {
			evt := s.pending[0]
			s.pending = s.pending[1:]
			return evt, nil
		}

		if s.ctx.Err() != nil {
			return s.fail(s.ctx.Err())
		}

		if s.exhausted {
			return s.finish(), nil
		}

		resp, err := s.sdk.Recv()
		if errors.Is(err, io.EOF) {
			s.exhausted = true
			s.closeOpenText()
			s.closeToolCalls()
			continue
		}
		if err != nil {
			return s.fail(err)
		}
		if err := s.processChunk(resp); err != nil {
			return s.fail(err)
		}
	}
}

func (s *stream) State() agentruntime.StreamState {
	return s.state
}

func (s *stream) Message() (agentruntime.AssistantMessage, error) {
	if s.state == agentruntime.StreamStateNew {
		return agentruntime.AssistantMessage{}, agentruntime.ErrStreamNotReady
	}
	return s.msg, nil
}

func (s *stream) Close() error {
	if s.state != agentruntime.StreamStateComplete && s.state != agentruntime.StreamStateError {
		s.state = agentruntime.StreamStateClosed
		s.terminal = true
		s.msg.StopReason = agentruntime.StopAborted
		s.msg.RawStopReason = "aborted"
	}
	return s.sdk.Close()
}

func (s *stream) fail(err error) (agentruntime.Event, error) {
	s.terminal = true
	s.err = fmt.Errorf("%s: %w", s.apiTag, err)

	reason := agentruntime.StopError
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		reason = agentruntime.StopAborted
	}
	s.state = agentruntime.StreamStateError
	s.msg.StopReason = reason
	s.msg.RawStopReason = string(reason)
	return agentruntime.EventError{Reason: reason, Partial: s.msg, Err: s.err}, nil
}

func (s *stream) finish() agentruntime.Event {
	s.terminal = true
	s.state = agentruntime.StreamStateComplete

	if s.msg.StopReason == "" {
		if len(s.toolBlocks) > 0 {
			s.msg.StopReason = agentruntime.StopToolUse
			s.msg.RawStopReason = "tool_calls"
		} else {
			s.msg.StopReason = agentruntime.StopEndTurn
			s.msg.RawStopReason = "stop"
		}
	}
	s.msg.Usage = s.msg.Usage.Finalize(s.cost)
	return agentruntime.EventDone{Reason: s.msg.StopReason, Message: s.msg}
}

func (s *stream) processChunk(resp sdk.ChatCompletionStreamResponse) error {
	if resp.Usage != nil {
		cached := 0
		if resp.Usage.PromptTokensDetails != nil {
			cached = resp.Usage.PromptTokensDetails.CachedTokens
		}
		input := resp.Usage.PromptTokens - cached
		if input < 0 {
			input = 0
		}
		s.msg.Usage = agentruntime.Usage{
			InputTokens:     input,
			OutputTokens:    resp.Usage.CompletionTokens,
			CacheReadTokens: cached,
		}
	}

	if len(resp.Choices) == 0 {
		return nil
	}
	choice := resp.Choices[0]

	if choice.FinishReason != "" {
		s.msg.RawStopReason = string(choice.FinishReason)
		s.msg.StopReason = mapFinishReason(choice.FinishReason)
	}

	delta := choice.Delta
	if delta.Content != "" {
		s.appendText(delta.Content)
	}
	for _, tc := range delta.ToolCalls {
		s.appendToolCallDelta(tc)
	}
	return nil
}

func (s *stream) appendText(text string) {
	if !s.textOpen {
		s.textIndex = len(s.msg.Content)
		s.msg.Content = append(s.msg.Content, agentruntime.TextBlock{})
		s.textOpen = true
		s.pending = append(s.pending, agentruntime.EventTextStart{Index: s.textIndex})
	}
	s.textBuf.WriteString(text)
	s.msg.Content[s.textIndex] = agentruntime.TextBlock{Text: s.textBuf.String()}
	s.pending = append(s.pending, agentruntime.EventTextDelta{Index: s.textIndex, Delta: text})
}

func (s *stream) closeOpenText() {
	if !s.textOpen {
		return
	}
	block := agentruntime.TextBlock{Text: s.textBuf.String()}
	s.pending = append(s.pending, agentruntime.EventTextEnd{Index: s.textIndex, Block: block})
	s.textOpen = false
}

func (s *stream) appendToolCallDelta(tc sdk.ToolCall) {
	idx := 0
	if tc.Index != nil {
		idx = *tc.Index
	}

	buf, exists := s.toolBlocks[idx]
	if !exists {
		s.closeOpenText()
		buf = &toolCallBuf{contentIndex: len(s.msg.Content)}
		s.toolBlocks[idx] = buf
		s.toolOrder = append(s.toolOrder, idx)
		s.msg.Content = append(s.msg.Content, agentruntime.ToolCallBlock{})
	}

	if tc.ID != "" {
		buf.id = tc.ID
	}
	if tc.Function.Name != "" {
		name := tc.Function.Name
		if canonical, ok := s.nameMap[name]; ok {
			name = canonical
		}
		buf.name = name
	}
	if !buf.began && buf.id != "" && buf.name != "" {
		buf.began = true
		s.pending = append(s.pending, agentruntime.EventToolCallBegin{Index: buf.contentIndex, ID: buf.id, Name: buf.name})
	}
	if tc.Function.Arguments != "" {
		buf.args.WriteString(tc.Function.Arguments)
		if buf.began {
			s.pending = append(s.pending, agentruntime.EventToolCallDelta{Index: buf.contentIndex, ID: buf.id, Delta: tc.Function.Arguments})
		}
	}

	s.msg.Content[buf.contentIndex] = agentruntime.ToolCallBlock{ID: buf.id, Name: buf.name, Arguments: json.RawMessage(rawOrEmptyObject(buf.args.String()))}
}

func (s *stream) closeToolCalls() {
	for _, idx := range s.toolOrder {
		buf := s.toolBlocks[idx]
		if buf.closed {
			continue
		}
		buf.closed = true

		id := buf.id
		if s.normalizeIDs {
			id = normalizeToolCallID(id)
		}
		call := agentruntime.ToolCallBlock{ID: id, Name: buf.name, Arguments: json.RawMessage(rawOrEmptyObject(buf.args.String()))}
		s.msg.Content[buf.contentIndex] = call

		if !buf.began {
			s.pending = append(s.pending, agentruntime.EventToolCallBegin{Index: buf.contentIndex, ID: id, Name: buf.name})
		}
		s.pending = append(s.pending, agentruntime.EventToolCallEnd{Index: buf.contentIndex, Call: call})
	}
}

func rawOrEmptyObject(s string) string {
	if strings.TrimSpace(s) == "" {
		return "{}"
	}
	return s
}

// normalizeToolCallID strips non-alphanumeric characters and pads (with
// "ABCDEFGHI") or truncates the result to exactly 9 characters, the id
// shape Mistral and Zhipu require.
func normalizeToolCallID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) >= 9 {
		return out[:9]
	}
	const pad = "ABCDEFGHI"
	return out + pad[len(out):]
}

// mapFinishReason maps OpenAI's finish_reason vocabulary onto the five
// provider-abstract reasons.
func mapFinishReason(reason sdk.FinishReason) agentruntime.StopReason {
	switch reason {
	case sdk.FinishReasonStop:
		return agentruntime.StopEndTurn
	case sdk.FinishReasonLength:
		return agentruntime.StopLength
	case sdk.FinishReasonToolCalls, sdk.FinishReasonFunctionCall:
		return agentruntime.StopToolUse
	case sdk.FinishReasonContentFilter:
		return agentruntime.StopError
	default:
		return agentruntime.StopEndTurn
	}
}
