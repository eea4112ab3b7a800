package llmfactory

import (
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/localagent/pkg/llms"
	"github.com/effective-security/localagent/pkg/llms/ollama"
	"github.com/effective-security/localagent/pkg/llms/openai"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/localagent", "llmfactory")

// ErrProviderNotFound is returned when no configured provider matches the request
var ErrProviderNotFound = errors.New("provider not found")

// NewLLM is a wrapper for CreateLLM to allow for overriding the default implementation.
var NewLLM = CreateLLM

// Factory is the interface for creating and managing LLM models.
type Factory interface {
	// DefaultModel returns the default LLM model.
	DefaultModel() (llms.Model, error)
	// ModelByType returns an LLM model by its provider type: OLLAMA, OPENAI
	ModelByType(providerType string) (llms.Model, error)
	// ModelByName returns an LLM model by its name,
	// if no provider lists the model, the default provider is asked for it,
	// and its default model is returned when the name is not available there.
	ModelByName(preferredModels ...string) (llms.Model, error)
	// ModelByProvider returns an LLM model of the named provider.
	// Empty name selects the default provider.
	ModelByProvider(providerName string, preferredModels ...string) (llms.Model, error)
}

type factory struct {
	cfg *Config

	defaultProvider *ProviderConfig
	byType          map[string]llms.Model
	byName          map[string]llms.Model
	lock            sync.Mutex
}

// New creates a new LLM factory
func New(cfg *Config) Factory {
	f := &factory{
		cfg:    cfg,
		byType: make(map[string]llms.Model),
		byName: make(map[string]llms.Model),
	}

	if cfg.DefaultProvider != "" {
		f.defaultProvider = f.findProvider(cfg.DefaultProvider)
	}
	if f.defaultProvider == nil && len(f.cfg.Providers) > 0 {
		f.defaultProvider = f.cfg.Providers[0]
	}

	return f
}

func CreateLLM(cfg *ProviderConfig, preferredModels ...string) (llms.Model, error) {
	provType := strings.ToUpper(cfg.APIType)
	switch provType {
	case "OLLAMA", "":
		return newOllama(cfg, preferredModels...)
	case "OPENAI", "OPEN_AI":
		return newOpenAI(cfg, preferredModels...)
	}
	return nil, errors.Newf("unsupported provider type: %s", provType)
}

func newOllama(cfg *ProviderConfig, preferredModels ...string) (llms.Model, error) {
	var opts []ollama.Option
	model := cfg.FindModel(preferredModels...)
	if model != "" {
		opts = append(opts, ollama.WithModel(model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	if cfg.KeepAlive != "" {
		opts = append(opts, ollama.WithKeepAlive(cfg.KeepAlive))
	}
	return ollama.New(opts...)
}

func newOpenAI(cfg *ProviderConfig, preferredModels ...string) (llms.Model, error) {
	var opts []openai.Option
	model := cfg.FindModel(preferredModels...)
	if model != "" {
		opts = append(opts, openai.WithModel(model))
	}
	if cfg.Token != "" {
		opts = append(opts, openai.WithToken(cfg.Token))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}

func (f *factory) findProvider(name string) *ProviderConfig {
	for _, provider := range f.cfg.Providers {
		if strings.EqualFold(provider.Name, name) {
			return provider
		}
	}
	return nil
}

// DefaultModel returns the default model of the default provider
func (f *factory) DefaultModel() (llms.Model, error) {
	if len(f.cfg.Providers) == 0 || f.defaultProvider == nil {
		return nil, errors.New("no providers configured")
	}

	return NewLLM(f.defaultProvider, f.defaultProvider.DefaultModel)
}

func (f *factory) defaultProviderModel(preferredModels ...string) (llms.Model, error) {
	if len(f.cfg.Providers) == 0 || f.defaultProvider == nil {
		return nil, errors.New("no providers configured")
	}
	return NewLLM(f.defaultProvider, append(slices.Clone(preferredModels), f.defaultProvider.DefaultModel)...)
}

func (f *factory) ModelByType(providerType string) (llms.Model, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if client, ok := f.byType[providerType]; ok {
		return client, nil
	}

	for _, cfg := range f.cfg.Providers {
		if strings.EqualFold(cfg.APIType, providerType) {
			model, err := NewLLM(cfg, cfg.DefaultModel)
			if err != nil {
				return nil, err
			}

			logger.KV(xlog.DEBUG,
				"status", "created_llm",
				"type", cfg.APIType,
				"name", cfg.Name)

			f.byType[providerType] = model
			return model, nil
		}
	}
	return nil, errors.Mark(errors.Newf("provider not found for type: %s", providerType), ErrProviderNotFound)
}

func (f *factory) ModelByName(modelNames ...string) (llms.Model, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	for _, modelName := range modelNames {
		if client, ok := f.byName[modelName]; ok {
			return client, nil
		}

		for _, cfg := range f.cfg.Providers {
			if slices.Contains(cfg.AvailableModels, modelName) {
				model, err := NewLLM(cfg, modelNames...)
				if err != nil {
					logger.KV(xlog.ERROR,
						"reason", "NewLLM",
						"type", cfg.APIType,
						"models", modelNames,
						"err", err.Error(),
					)
					continue
				}

				logger.KV(xlog.DEBUG,
					"status", "created_llm",
					"type", cfg.APIType,
					"name", cfg.Name)

				f.byName[modelName] = model
				return model, nil
			}
		}
	}
	return f.defaultProviderModel(modelNames...)
}

func (f *factory) ModelByProvider(providerName string, preferredModels ...string) (llms.Model, error) {
	provider := f.defaultProvider
	if providerName != "" {
		provider = f.findProvider(providerName)
	}
	if provider == nil {
		if providerName == "" {
			return nil, errors.New("no providers configured")
		}
		return nil, errors.Mark(errors.Newf("provider not found: %s", providerName), ErrProviderNotFound)
	}

	model, err := NewLLM(provider, append(slices.Clone(preferredModels), provider.DefaultModel)...)
	if err != nil {
		return nil, err
	}

	logger.KV(xlog.DEBUG,
		"status", "created_llm",
		"type", provider.APIType,
		"name", provider.Name,
		"model", model.GetName())
	return model, nil
}
