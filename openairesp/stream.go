package openairesp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/agentruntime"
)

// stream implements [agentruntime.Stream] by parsing SSE events from an
// HTTP response body. The event vocabulary (response.output_item.added,
// response.output_text.delta, ...) is the Responses API's own, distinct
// from the content_block_start/delta/stop triad Anthropic's Messages API
// uses, but the parsing shape — a line-oriented scanner feeding a small
// per-event-type dispatch — follows the same pattern.
type stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	ctx     context.Context
	apiTag  string
	cost    agentruntime.ModelCost

	state    agentruntime.StreamState
	started  bool
	terminal bool // true once a terminal event (Done or Error) has been returned
	msg      agentruntime.AssistantMessage
	err      error // terminal error, if any; set only when terminal is true

	// itemIndex maps a Responses output_item's item_id to its position in
	// msg.Content, assigned when the item is first seen.
	itemIndex map[string]int
	textBuf   map[string]*strings.Builder
	argsBuf   map[string]*strings.Builder
	// toolNames is populated from output_item.added, since
	// function_call_arguments.delta carries only the item id.
	toolNames map[string]string
	toolIDs   map[string]string

	pending []agentruntime.Event
}

// Interface compliance check.
var _ agentruntime.Stream = (*stream)(nil)

func newStream(ctx context.Context, body io.ReadCloser, modelID, apiTag, provider string, cost agentruntime.ModelCost) *stream {
	return &stream{
		body:    body,
		scanner: bufio.NewScanner(body),
		ctx:     ctx,
		apiTag:  apiTag,
		cost:    cost,
		state:   agentruntime.StreamStateNew,
		msg: agentruntime.AssistantMessage{
			API:      apiTag,
			Provider: provider,
			ModelID:  modelID,
		},
		itemIndex: make(map[string]int),
		textBuf:   make(map[string]*strings.Builder),
		argsBuf:   make(map[string]*strings.Builder),
		toolNames: make(map[string]string),
		toolIDs:   make(map[string]string),
	}
}

// Next reads the next semantic event from the SSE stream. The call that
// discovers a terminal failure returns an [agentruntime.EventError] with a
// nil error; only the following call returns the error itself. After the
// Done event, or after Close, Next returns io.EOF.
func (s *stream) Next() (agentruntime.Event, error) {
	if s.terminal {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}

	if s.state == agentruntime.StreamStateClosed {
		return nil, fmt.Errorf("%s: stream closed", s.apiTag)
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

		eventType, data, err := s.readSSEEvent()
		if err != nil {
			return s.fail(err)
		}

		if err := s.processEvent(eventType, data); err != nil {
			return s.fail(err)
		}

		if s.state == agentruntime.StreamStateComplete {
			s.terminal = true
			return agentruntime.EventDone{Reason: s.msg.StopReason, Message: s.msg}, nil
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
	if !s.terminal {
		s.terminal = true
		s.state = agentruntime.StreamStateClosed
		s.msg.StopReason = agentruntime.StopAborted
		s.msg.RawStopReason = "aborted"
	}
	return s.body.Close()
}

// fail records a terminal failure and returns the EventError for the call
// that discovered it; the error itself surfaces only on the next call to
// Next, once s.terminal is set.
func (s *stream) fail(err error) (agentruntime.Event, error) {
	if err == io.EOF {
		err = fmt.Errorf("%s: unexpected end of stream", s.apiTag)
	}

	var reason agentruntime.StopReason
	var raw string
	if s.ctx.Err() != nil {
		reason, raw = agentruntime.StopAborted, "aborted"
	} else {
		reason, raw = agentruntime.StopError, "error"
	}

	s.terminal = true
	s.err = err
	s.state = agentruntime.StreamStateError
	s.msg.StopReason = reason
	s.msg.RawStopReason = raw

	return agentruntime.EventError{Reason: reason, Partial: s.msg, Err: err}, nil
}

// readSSEEvent reads lines until a complete SSE event is assembled.
func (s *stream) readSSEEvent() (string, string, error) {
	var eventType string
	var dataBuf strings.Builder

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			if dataBuf.Len() > 0 {
				return eventType, dataBuf.String(), nil
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			if dataBuf.Len() > 0 {
				dataBuf.WriteByte('\n')
			}
			dataBuf.WriteString(strings.TrimPrefix(line, "data: "))
		}
	}

	if err := s.scanner.Err(); err != nil {
		return "", "", fmt.Errorf("%s: %w", s.apiTag, err)
	}
	if dataBuf.Len() > 0 {
		return eventType, dataBuf.String(), nil
	}
	return "", "", io.EOF
}

// processEvent maps one SSE event onto queued semantic events. Most
// handlers append to s.pending rather than returning a value directly,
// since a single wire event (output_item.added for a function_call) can
// translate to more than one semantic event, or none.
func (s *stream) processEvent(eventType, data string) error {
	switch eventType {
	case "response.output_item.added":
		return s.handleItemAdded(data)
	case "response.output_text.delta":
		return s.handleTextDelta(data)
	case "response.output_text.done":
		return s.handleTextDone(data)
	case "response.reasoning_summary_text.delta":
		return s.handleReasoningDelta(data)
	case "response.function_call_arguments.delta":
		return s.handleToolArgsDelta(data)
	case "response.function_call_arguments.done":
		return s.handleToolArgsDone(data)
	case "response.completed":
		return s.handleCompleted(data)
	case "response.incomplete":
		return s.handleIncomplete(data)
	case "response.failed", "error":
		return s.handleError(data)
	case "response.output_item.done":
		var evt sseOutputItemAdded
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			return fmt.Errorf("%s: failed to parse response.output_item.done: %w", s.apiTag, err)
		}
		idx, ok := s.itemIndex[evt.Item.ID]
		if !ok || evt.Item.Type != "reasoning" {
			return nil
		}
		block := agentruntime.ThinkingBlock{Thinking: s.textBuf[evt.Item.ID].String()}
		s.msg.Content[idx] = block
		s.pending = append(s.pending, agentruntime.EventThinkingEnd{Index: idx, Block: block})
		return nil
	default:
		// response.created, response.in_progress, content_part.added/done,
		// and any future event types carry no information this adapter
		// needs.
		return nil
	}
}

type sseOutputItemAdded struct {
	Item struct {
		ID     string `json:"id"`
		Type   string `json:"type"`
		CallID string `json:"call_id"`
		Name   string `json:"name"`
	} `json:"item"`
	OutputIndex int `json:"output_index"`
}

func (s *stream) handleItemAdded(data string) error {
	var evt sseOutputItemAdded
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return fmt.Errorf("%s: failed to parse response.output_item.added: %w", s.apiTag, err)
	}

	idx := len(s.msg.Content)
	s.itemIndex[evt.Item.ID] = idx

	switch evt.Item.Type {
	case "function_call":
		s.toolIDs[evt.Item.ID] = evt.Item.CallID
		s.toolNames[evt.Item.ID] = evt.Item.Name
		s.argsBuf[evt.Item.ID] = &strings.Builder{}
		s.msg.Content = append(s.msg.Content, agentruntime.ToolCallBlock{ID: evt.Item.CallID, Name: evt.Item.Name})
		s.pending = append(s.pending, agentruntime.EventToolCallBegin{Index: idx, ID: evt.Item.CallID, Name: evt.Item.Name})
	case "message":
		s.textBuf[evt.Item.ID] = &strings.Builder{}
		s.msg.Content = append(s.msg.Content, agentruntime.TextBlock{})
		s.pending = append(s.pending, agentruntime.EventTextStart{Index: idx})
	case "reasoning":
		s.textBuf[evt.Item.ID] = &strings.Builder{}
		s.msg.Content = append(s.msg.Content, agentruntime.ThinkingBlock{})
		s.pending = append(s.pending, agentruntime.EventThinkingStart{Index: idx})
	default:
		// Unknown item types (e.g. future built-in tool results) are
		// tracked by index but otherwise ignored.
	}
	return nil
}

type sseTextDelta struct {
	ItemID string `json:"item_id"`
	Delta  string `json:"delta"`
}

func (s *stream) handleTextDelta(data string) error {
	var evt sseTextDelta
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return fmt.Errorf("%s: failed to parse response.output_text.delta: %w", s.apiTag, err)
	}
	idx, ok := s.itemIndex[evt.ItemID]
	if !ok {
		return fmt.Errorf("%s: text delta for unknown item %q", s.apiTag, evt.ItemID)
	}
	buf := s.textBuf[evt.ItemID]
	buf.WriteString(evt.Delta)
	s.msg.Content[idx] = agentruntime.TextBlock{Text: buf.String()}
	s.pending = append(s.pending, agentruntime.EventTextDelta{Index: idx, Delta: evt.Delta})
	return nil
}

func (s *stream) handleTextDone(data string) error {
	var evt sseTextDelta // shares ItemID; Delta unused here
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return fmt.Errorf("%s: failed to parse response.output_text.done: %w", s.apiTag, err)
	}
	idx, ok := s.itemIndex[evt.ItemID]
	if !ok {
		return nil
	}
	block := agentruntime.TextBlock{Text: s.textBuf[evt.ItemID].String()}
	s.msg.Content[idx] = block
	s.pending = append(s.pending, agentruntime.EventTextEnd{Index: idx, Block: block})
	return nil
}

func (s *stream) handleReasoningDelta(data string) error {
	var evt sseTextDelta
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return fmt.Errorf("%s: failed to parse response.reasoning_summary_text.delta: %w", s.apiTag, err)
	}
	idx, ok := s.itemIndex[evt.ItemID]
	if !ok {
		return fmt.Errorf("%s: reasoning delta for unknown item %q", s.apiTag, evt.ItemID)
	}
	buf := s.textBuf[evt.ItemID]
	buf.WriteString(evt.Delta)
	s.msg.Content[idx] = agentruntime.ThinkingBlock{Thinking: buf.String()}
	s.pending = append(s.pending, agentruntime.EventThinkingDelta{Index: idx, Delta: evt.Delta})
	return nil
}

type sseToolArgsDelta struct {
	ItemID string `json:"item_id"`
	Delta  string `json:"delta"`
}

func (s *stream) handleToolArgsDelta(data string) error {
	var evt sseToolArgsDelta
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return fmt.Errorf("%s: failed to parse response.function_call_arguments.delta: %w", s.apiTag, err)
	}
	idx, ok := s.itemIndex[evt.ItemID]
	if !ok {
		return fmt.Errorf("%s: tool args delta for unknown item %q", s.apiTag, evt.ItemID)
	}
	buf := s.argsBuf[evt.ItemID]
	buf.WriteString(evt.Delta)
	s.msg.Content[idx] = agentruntime.ToolCallBlock{
		ID:        s.toolIDs[evt.ItemID],
		Name:      s.toolNames[evt.ItemID],
		Arguments: json.RawMessage(rawOrEmptyObject(buf.String())),
	}
	s.pending = append(s.pending, agentruntime.EventToolCallDelta{Index: idx, ID: s.toolIDs[evt.ItemID], Delta: evt.Delta})
	return nil
}

type sseToolArgsDone struct {
	ItemID    string `json:"item_id"`
	Arguments string `json:"arguments"`
}

func (s *stream) handleToolArgsDone(data string) error {
	var evt sseToolArgsDone
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return fmt.Errorf("%s: failed to parse response.function_call_arguments.done: %w", s.apiTag, err)
	}
	idx, ok := s.itemIndex[evt.ItemID]
	if !ok {
		return nil
	}
	call := agentruntime.ToolCallBlock{
		ID:        s.toolIDs[evt.ItemID],
		Name:      s.toolNames[evt.ItemID],
		Arguments: json.RawMessage(rawOrEmptyObject(evt.Arguments)),
	}
	s.msg.Content[idx] = call
	s.pending = append(s.pending, agentruntime.EventToolCallEnd{Index: idx, Call: call})
	return nil
}

type sseResponseDone struct {
	Response struct {
		Status string `json:"status"`
		Usage  struct {
			InputTokens        int `json:"input_tokens"`
			OutputTokens       int `json:"output_tokens"`
			InputTokensDetails struct {
				CachedTokens int `json:"cached_tokens"`
			} `json:"input_tokens_details"`
		} `json:"usage"`
		IncompleteDetails *struct {
			Reason string `json:"reason"`
		} `json:"incomplete_details"`
	} `json:"response"`
}

func (s *stream) handleCompleted(data string) error {
	var evt sseResponseDone
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return fmt.Errorf("%s: failed to parse response.completed: %w", s.apiTag, err)
	}
	s.applyUsage(evt)
	if len(s.toolIDs) > 0 {
		s.msg.StopReason = agentruntime.StopToolUse
		s.msg.RawStopReason = "tool_calls"
	} else {
		s.msg.StopReason = agentruntime.StopEndTurn
		s.msg.RawStopReason = "completed"
	}
	s.state = agentruntime.StreamStateComplete
	return nil
}

func (s *stream) handleIncomplete(data string) error {
	var evt sseResponseDone
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return fmt.Errorf("%s: failed to parse response.incomplete: %w", s.apiTag, err)
	}
	s.applyUsage(evt)
	if evt.Response.IncompleteDetails != nil && evt.Response.IncompleteDetails.Reason == "max_output_tokens" {
		s.msg.StopReason = agentruntime.StopLength
	} else {
		s.msg.StopReason = agentruntime.StopError
	}
	s.msg.RawStopReason = "incomplete"
	s.state = agentruntime.StreamStateComplete
	return nil
}

func (s *stream) applyUsage(evt sseResponseDone) {
	cached := evt.Response.Usage.InputTokensDetails.CachedTokens
	input := evt.Response.Usage.InputTokens - cached
	if input < 0 {
		input = 0
	}
	s.msg.Usage = agentruntime.Usage{
		InputTokens:     input,
		OutputTokens:    evt.Response.Usage.OutputTokens,
		CacheReadTokens: cached,
	}.Finalize(s.cost)
}

type sseError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *stream) handleError(data string) error {
	var evt sseError
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return fmt.Errorf("%s: failed to parse error event: %w", s.apiTag, err)
	}
	return fmt.Errorf("%s: %s: %s", s.apiTag, evt.Error.Type, evt.Error.Message)
}

func rawOrEmptyObject(s string) string {
	if strings.TrimSpace(s) == "" {
		return "{}"
	}
	return s
}
