// Command agentrun is a minimal headless harness demonstrating the runtime:
// it wires a Registry of every provider whose API key is present, a
// built-in file/bash tool Executor, and a facade.Agent, then drives a
// line-oriented read-eval-print loop over stdin/stdout.
//
// Usage:
//
//	ANTHROPIC_API_KEY=sk-... agentrun [flags]
//	OPENAI_API_KEY=sk-...    agentrun [flags]
//
// Flags:
//
//	-provider string      Provider: anthropic, gemini, openai, mistral, xai,
//	                      openrouter, zhipu, openai-responses, azure
//	-model string         Model ID (default: provider's catalog default)
//	-system-prompt string Path to system prompt file (default: .agentrun/prompt.md)
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/fwojciec/agentruntime"
	"github.com/fwojciec/agentruntime/builtin"
	"github.com/fwojciec/agentruntime/config"
	"github.com/fwojciec/agentruntime/facade"
	"github.com/fwojciec/agentruntime/registry"
)

const defaultPromptPath = ".agentrun/prompt.md"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "agentrun: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		providerFlag = flag.String("provider", "", "Provider: anthropic, gemini, openai, mistral, xai, openrouter, zhipu, openai-responses, azure")
		modelFlag    = flag.String("model", "", "Model ID (default: provider's catalog default)")
		promptPath   = flag.String("system-prompt", defaultPromptPath, "Path to system prompt file")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	reg := registry.New()
	available, err := registerProviders(ctx, reg, config.EnvAPIKey)
	if err != nil {
		return err
	}

	model, err := resolveModel(*providerFlag, *modelFlag, available)
	if err != nil {
		return err
	}

	systemPrompt := readSystemPrompt(*promptPath)

	executor := builtin.NewExecutor()
	cfg := config.New()
	agent := facade.New(reg, executor, cfg)
	agent.SetModel(model)
	agent.SetSystemPrompt(systemPrompt)
	agent.SetTools(executor.Tools())

	unsubscribe := agent.Subscribe(printLoopEvent)
	defer unsubscribe()

	fmt.Fprintf(os.Stderr, "agentrun: %s/%s, type a message and press enter (Ctrl-D to exit)\n", model.Provider, model.ID)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(os.Stderr, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := agent.Prompt(ctx, line); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintf(os.Stderr, "agentrun: %v\n", err)
		}
		fmt.Fprintln(os.Stderr)
	}
	return scanner.Err()
}

// printLoopEvent renders streamed text deltas and tool activity to stdout
// as an activation progresses.
func printLoopEvent(ev agentruntime.LoopEvent) {
	switch e := ev.(type) {
	case agentruntime.EventMessageUpdate:
		if delta, ok := e.Event.(agentruntime.EventTextDelta); ok {
			fmt.Print(delta.Delta)
		}
	case agentruntime.EventToolExecutionStart:
		fmt.Fprintf(os.Stderr, "\n[tool] %s\n", e.Name)
	case agentruntime.EventTurnEnd:
		fmt.Println()
	}
}

func readSystemPrompt(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "You are a helpful coding assistant."
	}
	return string(data)
}
