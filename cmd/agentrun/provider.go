package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fwojciec/agentruntime"
	"github.com/fwojciec/agentruntime/anthropic"
	"github.com/fwojciec/agentruntime/gemini"
	"github.com/fwojciec/agentruntime/openai"
	"github.com/fwojciec/agentruntime/openairesp"
	"github.com/fwojciec/agentruntime/registry"
)

// defaultModel is the catalog entry used when -model is omitted, one per
// provider name a user might pass to -provider.
var defaultModel = map[string]agentruntime.Model{
	"anthropic":        {ID: "claude-opus-4-20250514", API: anthropic.APITag, Provider: "anthropic"},
	"gemini":           {ID: "gemini-3.1-pro-preview", API: gemini.APITag, Provider: "gemini"},
	"openai":           {ID: "gpt-4o", API: openai.APITag, Provider: "openai"},
	"mistral":          {ID: "mistral-large-latest", API: openai.MistralAPITag, Provider: "mistral"},
	"xai":              {ID: "grok-4", API: openai.XAIAPITag, Provider: "xai"},
	"openrouter":       {ID: "openrouter/auto", API: openai.OpenRouterAPITag, Provider: "openrouter"},
	"zhipu":            {ID: "glm-4.6", API: openai.ZhipuAPITag, Provider: "zhipu"},
	"openai-responses": {ID: "gpt-5", API: openairesp.APITag, Provider: "openai"},
	// Azure addresses models by deployment name, set at registration time
	// via AZURE_OPENAI_DEPLOYMENT; there is no fixed default ID to list here.
	"azure": {ID: "", API: openairesp.AzureAPITag, Provider: "azure"},
}

// registerProviders builds every adapter whose API key getAPIKey can supply
// and registers it under its api tag, returning the set of provider names
// that were registered so the caller can pick a default.
func registerProviders(ctx context.Context, reg *registry.Registry, getAPIKey func(provider string) (string, bool)) ([]string, error) {
	var available []string

	if key, ok := getAPIKey("anthropic"); ok {
		reg.Register(anthropic.APITag, anthropic.NewFromAPIKey(key), "")
		available = append(available, "anthropic")
	}
	if key, ok := getAPIKey("gemini"); ok {
		client, err := gemini.New(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		reg.Register(gemini.APITag, client, "")
		available = append(available, "gemini")
	}
	if key, ok := getAPIKey("openai"); ok {
		reg.Register(openai.APITag, openai.NewFromAPIKey(key), "")
		available = append(available, "openai")
	}
	if key, ok := getAPIKey("mistral"); ok {
		reg.Register(openai.MistralAPITag, openai.NewMistralFromAPIKey(key), "")
		available = append(available, "mistral")
	}
	if key, ok := getAPIKey("xai"); ok {
		reg.Register(openai.XAIAPITag, openai.NewXAIFromAPIKey(key), "")
		available = append(available, "xai")
	}
	if key, ok := getAPIKey("openrouter"); ok {
		reg.Register(openai.OpenRouterAPITag, openai.NewOpenRouterFromAPIKey(key), "")
		available = append(available, "openrouter")
	}
	if key, ok := getAPIKey("zhipu"); ok {
		reg.Register(openai.ZhipuAPITag, openai.NewZhipuFromAPIKey(key), "")
		available = append(available, "zhipu")
	}
	if key, ok := getAPIKey("openai-responses"); ok {
		reg.Register(openairesp.APITag, openairesp.New(key), "")
		available = append(available, "openai-responses")
	}
	if key, ok := getAPIKey("azure"); ok {
		endpoint := os.Getenv("AZURE_OPENAI_ENDPOINT")
		deployment := os.Getenv("AZURE_OPENAI_DEPLOYMENT")
		if endpoint == "" || deployment == "" {
			return nil, fmt.Errorf("azure: AZURE_OPENAI_ENDPOINT and AZURE_OPENAI_DEPLOYMENT must both be set")
		}
		reg.Register(openairesp.AzureAPITag, openairesp.NewAzure(endpoint, key, deployment), "")
		defaultModel["azure"] = agentruntime.Model{ID: deployment, API: openairesp.AzureAPITag, Provider: "azure"}
		available = append(available, "azure")
	}

	return available, nil
}

// resolveModel picks the Model to drive the session with: the -model flag
// overrides the catalog entry's ID for the chosen provider, and providerFlag
// overrides auto-detection when more than one provider's key is available.
func resolveModel(providerFlag, modelFlag string, available []string) (agentruntime.Model, error) {
	provider := providerFlag
	if provider == "" {
		switch len(available) {
		case 0:
			return agentruntime.Model{}, fmt.Errorf("no API key found: set one of ANTHROPIC_API_KEY, GEMINI_API_KEY, OPENAI_API_KEY, MISTRAL_API_KEY, XAI_API_KEY, OPENROUTER_API_KEY, ZHIPU_API_KEY, AZURE_OPENAI_API_KEY")
		case 1:
			provider = available[0]
		default:
			return agentruntime.Model{}, fmt.Errorf("multiple API keys found (%v): use -provider flag to select", available)
		}
	}

	model, ok := defaultModel[provider]
	if !ok {
		return agentruntime.Model{}, fmt.Errorf("unknown provider %q", provider)
	}
	if modelFlag != "" {
		model.ID = modelFlag
	}
	return model, nil
}
