package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/fwojciec/agentruntime"
)

// stream adapts an Anthropic Messages ssestream into [agentruntime.Stream],
// translating SDK event types into the semantic Event vocabulary one block
// at a time.
type stream struct {
	ctx     context.Context
	sdk     *ssestream.Stream[sdk.MessageStreamEventUnion]
	nameMap map[string]string // sanitized -> canonical
	modelID string
	cost    agentruntime.ModelCost

	state    agentruntime.StreamState
	msg      agentruntime.AssistantMessage
	started  bool
	terminal bool
	err      error
	blocks   map[int]*blockBuffer
}

// blockBuffer accumulates one content block's streamed fragments between
// its ContentBlockStart and ContentBlockStop events.
type blockBuffer struct {
	kind             string // "text", "thinking", "tool_use", "redacted_thinking"
	toolID, toolName string
	text             strings.Builder
	thinking         strings.Builder
	signature        strings.Builder
	args             strings.Builder
	redacted         []byte
}

// Interface compliance check.
var _ agentruntime.Stream = (*stream)(nil)

func newStream(ctx context.Context, sdkStream *ssestream.Stream[sdk.MessageStreamEventUnion], nameMap map[string]string, modelID string, cost agentruntime.ModelCost) *stream {
	return &stream{
		ctx:     ctx,
		sdk:     sdkStream,
		nameMap: nameMap,
		modelID: modelID,
		cost:    cost,
		state:   agentruntime.StreamStateNew,
		blocks:  make(map[int]*blockBuffer),
		msg: agentruntime.AssistantMessage{
			API:      APITag,
			Provider: "anthropic",
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
		select {
		case <-s.ctx.Done():
			return s.fail(s.ctx.Err())
		default:
		}

		if !s.sdk.Next() {
			err := s.sdk.Err()
			if err == nil {
				err = errors.New("anthropic: stream ended before message_stop")
			}
			return s.fail(err)
		}

		ev, done, err := s.process(s.sdk.Current())
		if err != nil {
			return s.fail(err)
		}
		if done {
			return s.finish(), nil
		}
		if ev != nil {
			return ev, nil
		}
		// Non-semantic event (message_start, ping): keep reading.
	}
}

// State returns the current stream state.
func (s *stream) State() agentruntime.StreamState {
	return s.state
}

// Message returns the assembled AssistantMessage.
func (s *stream) Message() (agentruntime.AssistantMessage, error) {
	if s.state == agentruntime.StreamStateNew {
		return agentruntime.AssistantMessage{}, agentruntime.ErrStreamNotReady
	}
	return s.msg, nil
}

// Close releases the underlying HTTP response. Calling it before a
// terminal state marks the stream aborted.
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
	s.err = err
	reason := agentruntime.StopError
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		reason = agentruntime.StopAborted
	}
	s.state = agentruntime.StreamStateError
	s.msg.StopReason = reason
	s.msg.RawStopReason = string(reason)
	return agentruntime.EventError{Reason: reason, Partial: s.msg, Err: err}, nil
}

// finish is called once message_stop is observed; it compacts the content
// slice (dropping indices whose blocks never materialized, e.g. an
// entirely blank text block) and returns the terminal Done event.
func (s *stream) finish() agentruntime.Event {
	s.terminal = true
	s.state = agentruntime.StreamStateComplete

	compact := s.msg.Content[:0]
	for _, b := range s.msg.Content {
		if b != nil {
			compact = append(compact, b)
		}
	}
	s.msg.Content = compact
	s.msg.Usage = s.msg.Usage.Finalize(s.cost)

	return agentruntime.EventDone{Reason: s.msg.StopReason, Message: s.msg}
}

// process handles one SDK event, returning a semantic Event to forward
// (nil if the event carries no externally visible effect), whether
// message_stop was reached, and any protocol error.
func (s *stream) process(event sdk.MessageStreamEventUnion) (agentruntime.Event, bool, error) {
	switch ev := event.AsAny().(type) {
	case sdk.MessageStartEvent:
		s.msg.Usage.InputTokens = int(ev.Message.Usage.InputTokens)
		s.msg.Usage.CacheWriteTokens = int(ev.Message.Usage.CacheCreationInputTokens)
		s.msg.Usage.CacheReadTokens = int(ev.Message.Usage.CacheReadInputTokens)
		return nil, false, nil

	case sdk.ContentBlockStartEvent:
		return s.handleBlockStart(int(ev.Index), ev.ContentBlock.AsAny())

	case sdk.ContentBlockDeltaEvent:
		return s.handleBlockDelta(int(ev.Index), ev.Delta.AsAny())

	case sdk.ContentBlockStopEvent:
		return s.handleBlockStop(int(ev.Index))

	case sdk.MessageDeltaEvent:
		s.msg.RawStopReason = string(ev.Delta.StopReason)
		s.msg.StopReason = mapStopReason(string(ev.Delta.StopReason))
		if ev.Usage.InputTokens > 0 {
			s.msg.Usage.InputTokens = int(ev.Usage.InputTokens)
		}
		s.msg.Usage.OutputTokens = int(ev.Usage.OutputTokens)
		if ev.Usage.CacheCreationInputTokens > 0 {
			s.msg.Usage.CacheWriteTokens = int(ev.Usage.CacheCreationInputTokens)
		}
		if ev.Usage.CacheReadInputTokens > 0 {
			s.msg.Usage.CacheReadTokens = int(ev.Usage.CacheReadInputTokens)
		}
		return nil, false, nil

	case sdk.MessageStopEvent:
		return nil, true, nil

	default:
		return nil, false, nil
	}
}

func (s *stream) growContent(idx int) {
	for len(s.msg.Content) <= idx {
		s.msg.Content = append(s.msg.Content, nil)
	}
}

func (s *stream) handleBlockStart(idx int, start any) (agentruntime.Event, bool, error) {
	s.growContent(idx)

	switch b := start.(type) {
	case sdk.TextBlock:
		s.blocks[idx] = &blockBuffer{kind: "text"}
		return agentruntime.EventTextStart{Index: idx}, false, nil

	case sdk.ThinkingBlock:
		s.blocks[idx] = &blockBuffer{kind: "thinking"}
		return agentruntime.EventThinkingStart{Index: idx}, false, nil

	case sdk.RedactedThinkingBlock:
		s.blocks[idx] = &blockBuffer{kind: "redacted_thinking", redacted: []byte(b.Data)}
		return nil, false, nil

	case sdk.ToolUseBlock:
		if b.ID == "" {
			return nil, false, fmt.Errorf("anthropic: tool_use block missing id")
		}
		name := b.Name
		if canonical, ok := s.nameMap[name]; ok {
			name = canonical
		}
		s.blocks[idx] = &blockBuffer{kind: "tool_use", toolID: b.ID, toolName: name}
		s.msg.Content[idx] = agentruntime.ToolCallBlock{ID: b.ID, Name: name}
		return agentruntime.EventToolCallBegin{Index: idx, ID: b.ID, Name: name}, false, nil

	default:
		return nil, false, nil
	}
}

func (s *stream) handleBlockDelta(idx int, delta any) (agentruntime.Event, bool, error) {
	bb := s.blocks[idx]

	switch d := delta.(type) {
	case sdk.TextDelta:
		if bb == nil || d.Text == "" {
			return nil, false, nil
		}
		bb.text.WriteString(d.Text)
		s.msg.Content[idx] = agentruntime.TextBlock{Text: bb.text.String()}
		return agentruntime.EventTextDelta{Index: idx, Delta: d.Text}, false, nil

	case sdk.InputJSONDelta:
		if bb == nil || d.PartialJSON == "" {
			return nil, false, nil
		}
		bb.args.WriteString(d.PartialJSON)
		return agentruntime.EventToolCallDelta{Index: idx, ID: bb.toolID, Delta: d.PartialJSON}, false, nil

	case sdk.ThinkingDelta:
		if bb == nil || d.Thinking == "" {
			return nil, false, nil
		}
		bb.thinking.WriteString(d.Thinking)
		s.msg.Content[idx] = agentruntime.ThinkingBlock{Thinking: bb.thinking.String()}
		return agentruntime.EventThinkingDelta{Index: idx, Delta: d.Thinking}, false, nil

	case sdk.SignatureDelta:
		if bb != nil {
			bb.signature.WriteString(d.Signature)
		}
		return nil, false, nil

	default:
		return nil, false, nil
	}
}

func (s *stream) handleBlockStop(idx int) (agentruntime.Event, bool, error) {
	bb := s.blocks[idx]
	if bb == nil {
		return nil, false, nil
	}
	defer delete(s.blocks, idx)

	switch bb.kind {
	case "text":
		text := bb.text.String()
		if text == "" {
			s.msg.Content[idx] = nil
			return nil, false, nil
		}
		block := agentruntime.TextBlock{Text: text}
		s.msg.Content[idx] = block
		return agentruntime.EventTextEnd{Index: idx, Block: block}, false, nil

	case "thinking":
		thinking := bb.thinking.String()
		sig := bb.signature.String()
		if thinking == "" && sig == "" {
			s.msg.Content[idx] = nil
			return nil, false, nil
		}
		block := agentruntime.ThinkingBlock{Thinking: thinking, Signature: []byte(sig)}
		s.msg.Content[idx] = block
		return agentruntime.EventThinkingEnd{Index: idx, Block: block}, false, nil

	case "redacted_thinking":
		block := agentruntime.ThinkingBlock{Signature: bb.redacted}
		s.msg.Content[idx] = block
		return agentruntime.EventThinkingEnd{Index: idx, Block: block}, false, nil

	case "tool_use":
		raw := bb.args.String()
		if strings.TrimSpace(raw) == "" {
			raw = "{}"
		}
		call := agentruntime.ToolCallBlock{ID: bb.toolID, Name: bb.toolName, Arguments: json.RawMessage(raw)}
		s.msg.Content[idx] = call
		return agentruntime.EventToolCallEnd{Index: idx, Call: call}, false, nil

	default:
		return nil, false, nil
	}
}

// mapStopReason maps Anthropic's stop_reason vocabulary onto the five
// provider-abstract reasons. pause_turn and refusal are treated as a
// normal end of turn: neither indicates truncation, tool use, or failure,
// and the assistant message they accompany is a complete, deliverable
// turn.
func mapStopReason(raw string) agentruntime.StopReason {
	switch raw {
	case "end_turn", "stop_sequence", "pause_turn", "refusal":
		return agentruntime.StopEndTurn
	case "max_tokens":
		return agentruntime.StopLength
	case "tool_use":
		return agentruntime.StopToolUse
	default:
		return agentruntime.StopEndTurn
	}
}
