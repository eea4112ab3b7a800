package llmfactory

import (
	"slices"

	"github.com/effective-security/x/configloader"
)

type Config struct {
	// Providers specifies the list of providers to use
	Providers []*ProviderConfig `json:"providers" yaml:"providers"`
	// DefaultProvider specifies the default provider to use
	DefaultProvider string `json:"default_provider" yaml:"default_provider"`
}

// ProviderConfig for the LLM provider
type ProviderConfig struct {
	Name  string `json:"name" yaml:"name"`
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
	// APIType specifies the type of API to use: OLLAMA|OPENAI
	APIType string `json:"api_type,omitempty" yaml:"api_type,omitempty"`
	// BaseURL of the provider, the default depends on the APIType
	BaseURL         string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	DefaultModel    string   `json:"default_model,omitempty" yaml:"default_model,omitempty"`
	AvailableModels []string `json:"available_models,omitempty" yaml:"available_models,omitempty"`
	// KeepAlive controls how long Ollama keeps the model loaded, for example "5m"
	KeepAlive string `json:"keep_alive,omitempty" yaml:"keep_alive,omitempty"`
}

// FindModel returns the first of preferred models available from the provider.
// A provider without the list of available models accepts any model.
func (c *ProviderConfig) FindModel(models ...string) string {
	for _, model := range models {
		if model == "" {
			continue
		}
		if len(c.AvailableModels) == 0 || slices.Contains(c.AvailableModels, model) {
			return model
		}
	}
	return c.DefaultModel
}

// LoadConfig from file
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		return cfg, nil
	}

	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
