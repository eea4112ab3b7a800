package llmfactory_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/localagent/pkg/llmfactory"
	"github.com/effective-security/localagent/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useFakeLLM(t *testing.T) {
	llmfactory.NewLLM = func(cfg *llmfactory.ProviderConfig, preferredModels ...string) (llms.Model, error) {
		return &fakeLLM{provider: cfg.Name, model: cfg.FindModel(preferredModels...)}, nil
	}
	t.Cleanup(func() {
		llmfactory.NewLLM = llmfactory.CreateLLM
	})
}

func Test_LoadConfig(t *testing.T) {
	t.Setenv("LOCALAGENT_TEST_TOKEN", "fakekey")

	cfg, err := llmfactory.LoadConfig("testdata/llm.yaml")
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.DefaultProvider)
	require.Len(t, cfg.Providers, 3)

	local := cfg.Providers[0]
	assert.Equal(t, "OLLAMA", local.APIType)
	assert.Equal(t, "http://localhost:11434", local.BaseURL)
	assert.Equal(t, "llama3.1", local.DefaultModel)
	assert.Equal(t, []string{"llama3.1", "llama3.2", "qwen2.5"}, local.AvailableModels)
	assert.Equal(t, "5m", local.KeepAlive)

	assert.Equal(t, "fakekey", cfg.Providers[1].Token)

	cfg, err = llmfactory.LoadConfig("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Providers)

	_, err = llmfactory.LoadConfig("testdata/non-existent.yaml")
	require.Error(t, err)
}

func Test_FindModel(t *testing.T) {
	cfg := &llmfactory.ProviderConfig{
		DefaultModel:    "llama3.1",
		AvailableModels: []string{"llama3.1", "qwen2.5"},
	}
	assert.Equal(t, "qwen2.5", cfg.FindModel("phi3", "qwen2.5"))
	assert.Equal(t, "llama3.1", cfg.FindModel("phi3"))
	assert.Equal(t, "llama3.1", cfg.FindModel())

	open := &llmfactory.ProviderConfig{DefaultModel: "mistral"}
	assert.Equal(t, "phi3", open.FindModel("", "phi3"))
	assert.Equal(t, "mistral", open.FindModel())
}

func Test_Factory(t *testing.T) {
	t.Setenv("LOCALAGENT_TEST_TOKEN", "fakekey")
	useFakeLLM(t)

	cfg, err := llmfactory.LoadConfig("testdata/llm.yaml")
	require.NoError(t, err)

	f := llmfactory.New(cfg)
	model, err := f.DefaultModel()
	require.NoError(t, err)
	fm := model.(*fakeLLM)
	assert.Equal(t, "llama3.1", fm.model)
	assert.Equal(t, "local", fm.provider)

	model, err = f.ModelByName("gpt-4.1-mini")
	require.NoError(t, err)
	fm = model.(*fakeLLM)
	assert.Equal(t, "gpt-4.1-mini", fm.model)
	assert.Equal(t, "remote", fm.provider)

	model, err = f.ModelByName("unknown", "qwen2.5")
	require.NoError(t, err)
	fm = model.(*fakeLLM)
	assert.Equal(t, "qwen2.5", fm.model)
	assert.Equal(t, "local", fm.provider)

	// fallback to default
	model, err = f.ModelByName("non-existent-model")
	require.NoError(t, err)
	fm = model.(*fakeLLM)
	assert.Equal(t, "llama3.1", fm.model)
	assert.Equal(t, "local", fm.provider)

	model, err = f.ModelByType("OPENAI")
	require.NoError(t, err)
	fm = model.(*fakeLLM)
	assert.Equal(t, "gpt-4o-mini", fm.model)
	assert.Equal(t, "remote", fm.provider)

	// cached
	model2, err := f.ModelByType("OPENAI")
	require.NoError(t, err)
	assert.Same(t, model, model2)

	_, err = f.ModelByType("UNSUPPORTED")
	assert.EqualError(t, err, "provider not found for type: UNSUPPORTED")

	model, err = f.ModelByProvider("", "llama3.2")
	require.NoError(t, err)
	fm = model.(*fakeLLM)
	assert.Equal(t, "llama3.2", fm.model)
	assert.Equal(t, "local", fm.provider)

	model, err = f.ModelByProvider("ANY", "phi3")
	require.NoError(t, err)
	fm = model.(*fakeLLM)
	assert.Equal(t, "phi3", fm.model)
	assert.Equal(t, "any", fm.provider)

	model, err = f.ModelByProvider("any")
	require.NoError(t, err)
	fm = model.(*fakeLLM)
	assert.Equal(t, "mistral", fm.model)

	_, err = f.ModelByProvider("missing")
	assert.EqualError(t, err, "provider not found: missing")

	empty := llmfactory.New(&llmfactory.Config{})
	_, err = empty.DefaultModel()
	assert.EqualError(t, err, "no providers configured")
	_, err = empty.ModelByProvider("")
	assert.EqualError(t, err, "no providers configured")

	// invalid default provider falls back to the first one
	invalid := llmfactory.New(&llmfactory.Config{
		DefaultProvider: "non-existent",
		Providers:       cfg.Providers,
	})
	model, err = invalid.DefaultModel()
	require.NoError(t, err)
	fm = model.(*fakeLLM)
	assert.Equal(t, "local", fm.provider)
}

func Test_ModelByName_DefaultProvider(t *testing.T) {
	useFakeLLM(t)

	f := llmfactory.New(&llmfactory.Config{
		Providers: []*llmfactory.ProviderConfig{
			{Name: "ollama", APIType: "OLLAMA", DefaultModel: "llama3.1"},
			{Name: "remote", APIType: "OPENAI", DefaultModel: "gpt-4o-mini", AvailableModels: []string{"gpt-4o-mini"}},
		},
	})

	// not listed by any provider, the default one accepts any model
	model, err := f.ModelByName("qwen2.5")
	require.NoError(t, err)
	fm := model.(*fakeLLM)
	assert.Equal(t, "qwen2.5", fm.model)
	assert.Equal(t, "ollama", fm.provider)

	model, err = f.ModelByName("gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "remote", model.(*fakeLLM).provider)

	_, err = f.ModelByProvider("missing")
	assert.True(t, errors.Is(err, llmfactory.ErrProviderNotFound))
	_, err = f.ModelByType("BEDROCK")
	assert.True(t, errors.Is(err, llmfactory.ErrProviderNotFound))

	_, err = llmfactory.New(&llmfactory.Config{}).ModelByName("qwen2.5")
	assert.EqualError(t, err, "no providers configured")
}

func Test_CreateLLM(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("OLLAMA_MODEL", "")
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("OPENAI_BASE_URL", "")

	model, err := llmfactory.CreateLLM(&llmfactory.ProviderConfig{
		Name:      "local",
		APIType:   "ollama",
		BaseURL:   "http://localhost:11434",
		KeepAlive: "1m",
	}, "qwen2.5")
	require.NoError(t, err)
	assert.Equal(t, llms.ProviderOllama, model.GetProviderType())
	assert.Equal(t, "qwen2.5", model.GetName())

	// empty type is Ollama
	model, err = llmfactory.CreateLLM(&llmfactory.ProviderConfig{DefaultModel: "llama3.2"})
	require.NoError(t, err)
	assert.Equal(t, llms.ProviderOllama, model.GetProviderType())
	assert.Equal(t, "llama3.2", model.GetName())

	_, err = llmfactory.CreateLLM(&llmfactory.ProviderConfig{
		APIType: "OLLAMA",
		BaseURL: "localhost:11434",
	})
	assert.EqualError(t, err, `invalid Ollama server URL: "localhost:11434"`)

	for _, typ := range []string{"OPENAI", "OPEN_AI"} {
		model, err = llmfactory.CreateLLM(&llmfactory.ProviderConfig{
			APIType:      typ,
			Token:        "fakekey",
			BaseURL:      "http://localhost:11434/v1",
			DefaultModel: "llama3.1",
		})
		require.NoError(t, err)
		assert.Equal(t, llms.ProviderOpenAI, model.GetProviderType())
		assert.Equal(t, "llama3.1", model.GetName())
	}

	_, err = llmfactory.CreateLLM(&llmfactory.ProviderConfig{APIType: "bedrock"})
	assert.EqualError(t, err, "unsupported provider type: BEDROCK")
}

type fakeLLM struct {
	provider string
	model    string
}

func (f *fakeLLM) GetProviderType() llms.ProviderType {
	return llms.ProviderOllama
}

func (f *fakeLLM) GetName() string {
	return f.model
}

func (f *fakeLLM) GenerateContent(_ context.Context, _ []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}
