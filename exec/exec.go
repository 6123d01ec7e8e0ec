// Package exec provides the bash command execution tool.
package exec

import "github.com/fwojciec/agentruntime"

func domainError(msg string) *agentruntime.ToolResult {
	return &agentruntime.ToolResult{
		Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: msg}},
		IsError: true,
	}
}
