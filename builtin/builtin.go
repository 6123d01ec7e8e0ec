// Package builtin composes the real filesystem and bash tool collaborators
// (fs, exec) into a single agentruntime.ToolExecutor, the way a program
// wiring the runtime together would assemble its default tool set.
package builtin
