package registry_test

import (
	"context"
	"testing"

	"github.com/fwojciec/agentruntime"
	"github.com/fwojciec/agentruntime/mock"
	"github.com/fwojciec/agentruntime/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeProvider() *mock.Provider {
	return &mock.Provider{
		StreamFn: func(context.Context, agentruntime.Request) (agentruntime.Stream, error) {
			return nil, nil
		},
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	t.Parallel()

	r := registry.New()
	p := fakeProvider()
	r.Register("anthropic-messages", p, "")

	got, err := r.Get("anthropic-messages")
	require.NoError(t, err)
	assert.Same(t, agentruntime.Provider(p), got)
}

func TestRegistry_GetUnknown(t *testing.T) {
	t.Parallel()

	r := registry.New()
	_, err := r.Get("no-such-api")
	assert.ErrorIs(t, err, agentruntime.ErrUnknownAPI)
}

func TestRegistry_LastWriterWins(t *testing.T) {
	t.Parallel()

	r := registry.New()
	first := fakeProvider()
	second := fakeProvider()
	r.Register("openai-completions", first, "")
	r.Register("openai-completions", second, "")

	got, err := r.Get("openai-completions")
	require.NoError(t, err)
	assert.Same(t, agentruntime.Provider(second), got)
}

func TestRegistry_UnregisterBySourceID(t *testing.T) {
	t.Parallel()

	r := registry.New()
	r.Register("mistral-chat", fakeProvider(), "plugin-a")
	r.Register("xai-chat", fakeProvider(), "plugin-a")
	r.Register("zhipu-chat", fakeProvider(), "plugin-b")

	r.Unregister("plugin-a")

	_, err := r.Get("mistral-chat")
	assert.ErrorIs(t, err, agentruntime.ErrUnknownAPI)
	_, err = r.Get("xai-chat")
	assert.ErrorIs(t, err, agentruntime.ErrUnknownAPI)

	_, err = r.Get("zhipu-chat")
	assert.NoError(t, err)
}

func TestRegistry_Clear(t *testing.T) {
	t.Parallel()

	r := registry.New()
	r.Register("anthropic-messages", fakeProvider(), "")
	r.Register("google-generative-ai", fakeProvider(), "")

	r.Clear()

	_, err := r.Get("anthropic-messages")
	assert.ErrorIs(t, err, agentruntime.ErrUnknownAPI)
	_, err = r.Get("google-generative-ai")
	assert.ErrorIs(t, err, agentruntime.ErrUnknownAPI)
}
