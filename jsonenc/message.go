package jsonenc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fwojciec/agentruntime"
)

// messageDTO is the JSON representation of a Message with a type discriminator.
type messageDTO struct {
	Type          string          `json:"type"`
	Content       []contentBlock  `json:"content"`
	Timestamp     time.Time       `json:"timestamp"`
	API           *string         `json:"api,omitempty"`
	Provider      *string         `json:"provider,omitempty"`
	ModelID       *string         `json:"model,omitempty"`
	StopReason    *string         `json:"stop_reason,omitempty"`
	RawStopReason *string         `json:"raw_stop_reason,omitempty"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	Usage         *usageDTO       `json:"usage,omitempty"`
	ToolCallID    *string         `json:"tool_call_id,omitempty"`
	ToolName      *string         `json:"tool_name,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	IsError       *bool           `json:"is_error,omitempty"`
}

func marshalMessage(msg agentruntime.Message) (messageDTO, error) {
	switch m := msg.(type) {
	case agentruntime.UserMessage:
		blocks, err := marshalContentBlocks(m.Content)
		if err != nil {
			return messageDTO{}, err
		}
		return messageDTO{
			Type:      "user",
			Content:   blocks,
			Timestamp: m.Timestamp,
		}, nil
	case agentruntime.AssistantMessage:
		blocks, err := marshalContentBlocks(m.Content)
		if err != nil {
			return messageDTO{}, err
		}
		sr := string(m.StopReason)
		dto := messageDTO{
			Type:          "assistant",
			Content:       blocks,
			Timestamp:     m.Timestamp,
			StopReason:    &sr,
			RawStopReason: &m.RawStopReason,
			Usage: &usageDTO{
				InputTokens:      m.Usage.InputTokens,
				OutputTokens:     m.Usage.OutputTokens,
				CacheReadTokens:  m.Usage.CacheReadTokens,
				CacheWriteTokens: m.Usage.CacheWriteTokens,
				TotalTokens:      m.Usage.TotalTokens,
				Cost: &usageCostDTO{
					Input:      m.Usage.Cost.Input,
					Output:     m.Usage.Cost.Output,
					CacheRead:  m.Usage.Cost.CacheRead,
					CacheWrite: m.Usage.Cost.CacheWrite,
					Total:      m.Usage.Cost.Total,
				},
			},
		}
		if m.API != "" {
			dto.API = &m.API
		}
		if m.Provider != "" {
			dto.Provider = &m.Provider
		}
		if m.ModelID != "" {
			dto.ModelID = &m.ModelID
		}
		if m.ErrorMessage != "" {
			dto.ErrorMessage = &m.ErrorMessage
		}
		return dto, nil
	case agentruntime.ToolResultMessage:
		blocks, err := marshalContentBlocks(m.Content)
		if err != nil {
			return messageDTO{}, err
		}
		return messageDTO{
			Type:       "tool_result",
			Content:    blocks,
			Timestamp:  m.Timestamp,
			ToolCallID: &m.ToolCallID,
			ToolName:   &m.ToolName,
			Details:    m.Details,
			IsError:    &m.IsError,
		}, nil
	default:
		return messageDTO{}, fmt.Errorf("unknown message type: %T", msg)
	}
}

func unmarshalMessage(dto messageDTO) (agentruntime.Message, error) {
	blocks, err := unmarshalContentBlocks(dto.Content)
	if err != nil {
		return nil, err
	}
	switch dto.Type {
	case "user":
		return agentruntime.UserMessage{
			Content:   blocks,
			Timestamp: dto.Timestamp,
		}, nil
	case "assistant":
		var sr agentruntime.StopReason
		if dto.StopReason != nil {
			sr = agentruntime.StopReason(*dto.StopReason)
		}
		var rawSR string
		if dto.RawStopReason != nil {
			rawSR = *dto.RawStopReason
		}
		var usage agentruntime.Usage
		if dto.Usage != nil {
			usage = agentruntime.Usage{
				InputTokens:      dto.Usage.InputTokens,
				OutputTokens:     dto.Usage.OutputTokens,
				CacheReadTokens:  dto.Usage.CacheReadTokens,
				CacheWriteTokens: dto.Usage.CacheWriteTokens,
				TotalTokens:      dto.Usage.TotalTokens,
			}
			if dto.Usage.Cost != nil {
				usage.Cost = agentruntime.UsageCost{
					Input:      dto.Usage.Cost.Input,
					Output:     dto.Usage.Cost.Output,
					CacheRead:  dto.Usage.Cost.CacheRead,
					CacheWrite: dto.Usage.Cost.CacheWrite,
					Total:      dto.Usage.Cost.Total,
				}
			}
		}
		m := agentruntime.AssistantMessage{
			Content:       blocks,
			StopReason:    sr,
			RawStopReason: rawSR,
			Usage:         usage,
			Timestamp:     dto.Timestamp,
		}
		if dto.API != nil {
			m.API = *dto.API
		}
		if dto.Provider != nil {
			m.Provider = *dto.Provider
		}
		if dto.ModelID != nil {
			m.ModelID = *dto.ModelID
		}
		if dto.ErrorMessage != nil {
			m.ErrorMessage = *dto.ErrorMessage
		}
		return m, nil
	case "tool_result":
		var toolCallID, toolName string
		if dto.ToolCallID != nil {
			toolCallID = *dto.ToolCallID
		}
		if dto.ToolName != nil {
			toolName = *dto.ToolName
		}
		var isError bool
		if dto.IsError != nil {
			isError = *dto.IsError
		}
		return agentruntime.ToolResultMessage{
			ToolCallID: toolCallID,
			ToolName:   toolName,
			Content:    blocks,
			Details:    dto.Details,
			IsError:    isError,
			Timestamp:  dto.Timestamp,
		}, nil
	default:
		return nil, fmt.Errorf("unknown message type: %q", dto.Type)
	}
}
