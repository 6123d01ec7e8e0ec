package gemini

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"

	"google.golang.org/genai"

	"github.com/fwojciec/agentruntime"
)

// stream implements [agentruntime.Stream] by wrapping the genai SDK's
// streaming iterator. Each SDK chunk can contain multiple Parts that map to
// different event types (text, thinking, tool calls). The stream uses
// append-based block assembly: new block when part type changes, accumulate
// into current block when consecutive same-type.
type stream struct {
	ctx     context.Context
	pull    func() (*genai.GenerateContentResponse, error, bool)
	stop    func()
	modelID string
	cost    agentruntime.ModelCost

	state     agentruntime.StreamState
	msg       agentruntime.AssistantMessage
	started   bool
	terminal  bool
	exhausted bool
	pending   []agentruntime.Event
	err       error

	blocks      []*blockState
	hasToolCall bool
}

// blockState tracks accumulation for a single content block.
type blockState struct {
	blockType string // "thinking", "text", "tool_call"
	index     int
	textBuf   strings.Builder
	signature []byte
}

// Interface compliance check.
var _ agentruntime.Stream = (*stream)(nil)

func newStream(ctx context.Context, iterFn iter.Seq2[*genai.GenerateContentResponse, error], modelID string, cost agentruntime.ModelCost) *stream {
	next, stop := iter.Pull2(iterFn)
	return &stream{
		ctx:     ctx,
		pull:    next,
		stop:    stop,
		modelID: modelID,
		cost:    cost,
		state:   agentruntime.StreamStateNew,
		msg: agentruntime.AssistantMessage{
			API:      APITag,
			Provider: "gemini",
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

		resp, err, ok := s.pull()
		if !ok {
			s.exhausted = true
			s.closeOpenBlock()
			continue
		}
		if err != nil {
			return s.fail(err)
		}
		if resp == nil {
			continue
		}

		if err := s.processChunk(resp); err != nil {
			return s.fail(err)
		}
		// Loop back to drain any events the chunk produced.
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
	s.stop()
	return nil
}

func (s *stream) fail(err error) (agentruntime.Event, error) {
	s.terminal = true
	s.err = fmt.Errorf("gemini: %w", err)
	s.stop()

	reason := agentruntime.StopError
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		reason = agentruntime.StopAborted
	} else if s.msg.StopReason == agentruntime.StopError {
		// Preserve an already-set StopError (e.g. blocked prompt).
		reason = agentruntime.StopError
	}
	s.state = agentruntime.StreamStateError
	s.msg.StopReason = reason
	if s.msg.RawStopReason == "" {
		s.msg.RawStopReason = string(reason)
	}
	return agentruntime.EventError{Reason: reason, Partial: s.msg, Err: s.err}, nil
}

func (s *stream) finish() agentruntime.Event {
	s.terminal = true
	s.state = agentruntime.StreamStateComplete
	s.stop()

	switch {
	case s.hasToolCall && (s.msg.StopReason == "" || s.msg.StopReason == agentruntime.StopEndTurn):
		s.msg.StopReason = agentruntime.StopToolUse
		s.msg.RawStopReason = "tool_use"
	case s.msg.StopReason == "":
		s.msg.StopReason = agentruntime.StopEndTurn
		s.msg.RawStopReason = "end_turn"
	}
	s.msg.Usage = s.msg.Usage.Finalize(s.cost)
	return agentruntime.EventDone{Reason: s.msg.StopReason, Message: s.msg}
}

func (s *stream) processChunk(resp *genai.GenerateContentResponse) error {
	// UsageMetadata is overwritten (not accumulated) because the Gemini SDK
	// provides cumulative totals in the final chunk, not incremental deltas.
	if resp.UsageMetadata != nil {
		cached := int(resp.UsageMetadata.CachedContentTokenCount)
		// PromptTokenCount includes CachedContentTokenCount; subtract to get
		// non-cached input tokens. Guard below handles SDK semantic changes.
		input := int(resp.UsageMetadata.PromptTokenCount) - cached
		if input < 0 {
			input = 0
		}
		s.msg.Usage = agentruntime.Usage{
			InputTokens:     input,
			OutputTokens:    int(resp.UsageMetadata.CandidatesTokenCount),
			CacheReadTokens: cached,
		}
	}

	// A blocked prompt arrives with PromptFeedback and zero candidates.
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" && len(resp.Candidates) == 0 {
		s.msg.StopReason = agentruntime.StopError
		s.msg.RawStopReason = string(resp.PromptFeedback.BlockReason)
		return fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}

	if len(resp.Candidates) == 0 {
		return nil
	}
	candidate := resp.Candidates[0]

	if candidate.FinishReason != "" {
		s.msg.RawStopReason = string(candidate.FinishReason)
		s.msg.StopReason = mapFinishReason(candidate.FinishReason)
	}

	if candidate.Content == nil {
		return nil
	}

	for _, part := range candidate.Content.Parts {
		if err := s.processPart(part); err != nil {
			return err
		}
	}
	return nil
}

func (s *stream) processPart(part *genai.Part) error {
	switch {
	case part.FunctionCall != nil:
		s.closeOpenBlock()
		s.hasToolCall = true
		args := part.FunctionCall.Args
		if args == nil {
			args = map[string]any{}
		}
		rawArgs, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("invalid tool call arguments: %w", err)
		}
		id := part.FunctionCall.ID
		if id == "" {
			var err error
			id, err = generateToolCallID()
			if err != nil {
				return fmt.Errorf("processing function call: %w", err)
			}
		}
		idx := len(s.msg.Content)
		call := agentruntime.ToolCallBlock{
			ID:        id,
			Name:      part.FunctionCall.Name,
			Arguments: json.RawMessage(rawArgs),
		}
		s.msg.Content = append(s.msg.Content, call)
		s.blocks = append(s.blocks, &blockState{blockType: "tool_call", index: idx})
		s.pending = append(s.pending,
			agentruntime.EventToolCallBegin{Index: idx, ID: id, Name: part.FunctionCall.Name},
			agentruntime.EventToolCallEnd{Index: idx, Call: call},
		)

	case part.Thought:
		idx, justOpened := s.currentBlockIndex("thinking")
		bs := s.blocks[len(s.blocks)-1]
		bs.textBuf.WriteString(part.Text)
		if len(part.ThoughtSignature) > 0 {
			bs.signature = append(bs.signature, part.ThoughtSignature...)
		}
		s.msg.Content[idx] = agentruntime.ThinkingBlock{Thinking: bs.textBuf.String(), Signature: slices.Clone(bs.signature)}
		if justOpened {
			s.pending = append(s.pending, agentruntime.EventThinkingStart{Index: idx})
		}
		if part.Text != "" {
			s.pending = append(s.pending, agentruntime.EventThinkingDelta{Index: idx, Delta: part.Text})
		}

	case part.Text != "":
		idx, justOpened := s.currentBlockIndex("text")
		bs := s.blocks[len(s.blocks)-1]
		bs.textBuf.WriteString(part.Text)
		s.msg.Content[idx] = agentruntime.TextBlock{Text: bs.textBuf.String()}
		if justOpened {
			s.pending = append(s.pending, agentruntime.EventTextStart{Index: idx})
		}
		s.pending = append(s.pending, agentruntime.EventTextDelta{Index: idx, Delta: part.Text})
	}
	return nil
}

// currentBlockIndex returns the index of the current block if it matches the
// given type, along with false since no new block was opened. If the last
// block is a different type (or no blocks exist), a new block is appended
// and true is returned.
func (s *stream) currentBlockIndex(blockType string) (int, bool) {
	if n := len(s.blocks); n > 0 && s.blocks[n-1].blockType == blockType {
		return s.blocks[n-1].index, false
	}
	s.closeOpenBlock()
	idx := len(s.msg.Content)
	s.blocks = append(s.blocks, &blockState{blockType: blockType, index: idx})
	switch blockType {
	case "thinking":
		s.msg.Content = append(s.msg.Content, agentruntime.ThinkingBlock{})
	case "text":
		s.msg.Content = append(s.msg.Content, agentruntime.TextBlock{})
	}
	return idx, true
}

// closeOpenBlock emits the End event for a still-open text or thinking
// block before a new block (of any type) begins, since Gemini's chunk
// stream gives no explicit block-boundary signal of its own.
func (s *stream) closeOpenBlock() {
	if len(s.blocks) == 0 {
		return
	}
	bs := s.blocks[len(s.blocks)-1]
	switch bs.blockType {
	case "text":
		s.pending = append(s.pending, agentruntime.EventTextEnd{
			Index: bs.index,
			Block: agentruntime.TextBlock{Text: bs.textBuf.String()},
		})
	case "thinking":
		s.pending = append(s.pending, agentruntime.EventThinkingEnd{
			Index: bs.index,
			Block: agentruntime.ThinkingBlock{Thinking: bs.textBuf.String(), Signature: slices.Clone(bs.signature)},
		})
	default:
		return
	}
	s.blocks = append(s.blocks, &blockState{blockType: "closed"})
}

func mapFinishReason(reason genai.FinishReason) agentruntime.StopReason {
	switch reason {
	case genai.FinishReasonStop:
		return agentruntime.StopEndTurn
	case genai.FinishReasonMaxTokens:
		return agentruntime.StopLength
	case genai.FinishReasonSafety, genai.FinishReasonRecitation,
		genai.FinishReasonBlocklist, genai.FinishReasonProhibitedContent,
		genai.FinishReasonSPII, genai.FinishReasonMalformedFunctionCall:
		return agentruntime.StopError
	default:
		return agentruntime.StopEndTurn
	}
}

// generateToolCallID generates a unique fallback ID for tool calls
// when the SDK doesn't provide one.
func generateToolCallID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating tool call ID: %w", err)
	}
	return "call_" + hex.EncodeToString(b), nil
}
