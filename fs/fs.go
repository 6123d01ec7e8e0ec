// Package fs provides filesystem tools: read, write, edit, grep, and glob.
package fs

import "github.com/fwojciec/agentruntime"

func domainError(msg string) *agentruntime.ToolResult {
	return &agentruntime.ToolResult{
		Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: msg}},
		IsError: true,
	}
}

func textResult(text string) *agentruntime.ToolResult {
	return &agentruntime.ToolResult{
		Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: text}},
		IsError: false,
	}
}
