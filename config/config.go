// Package config provides the configuration of the localagent application
package config

import (
	"net/url"
	"path/filepath"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/localagent/orchestrator"
	"github.com/effective-security/localagent/pkg/llmfactory"
	"github.com/effective-security/localagent/pkg/llms"
	"github.com/effective-security/localagent/pkg/llms/ollama"
	"github.com/effective-security/localagent/tools/browser"
	"github.com/effective-security/localagent/tools/launcher"
	"github.com/effective-security/localagent/tools/weather"
	"github.com/effective-security/x/configloader"
	"github.com/effective-security/x/values"
)

// DefaultProviderName is the name of the provider used when none is configured
const DefaultProviderName = "ollama"

// Configuration of the application
type Configuration struct {
	// Prompt is the query sent to the model
	Prompt string `json:"prompt,omitempty" yaml:"prompt,omitempty"`

	// LLMConfig is the path of a separate file with the LLM providers,
	// relative to the configuration file. Used when LLM is not set.
	LLMConfig string `json:"llm_config,omitempty" yaml:"llm_config,omitempty"`

	LLM      *llmfactory.Config `json:"llm,omitempty" yaml:"llm,omitempty"`
	Weather  Weather            `json:"weather" yaml:"weather"`
	Launcher Launcher           `json:"launcher" yaml:"launcher"`
	Browser  Browser            `json:"browser" yaml:"browser"`
}

// Weather is the configuration of the weather tool
type Weather struct {
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// Timeout of the forecast request, zero means no timeout
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Launcher is the configuration of the application launcher
type Launcher struct {
	// Platform to launch applications for, empty means the host OS
	Platform string `json:"platform,omitempty" yaml:"platform,omitempty"`
	// SettleTimeout is the time to wait for the launched application to fail
	SettleTimeout Duration `json:"settle_timeout,omitempty" yaml:"settle_timeout,omitempty"`
}

// Browser is the configuration of the browser tool
type Browser struct {
	AssistantURL string `json:"assistant_url,omitempty" yaml:"assistant_url,omitempty"`
}

// Default returns the configuration with default values
func Default() *Configuration {
	cfg := new(Configuration)
	cfg.SetDefaults()
	return cfg
}

// Load returns the configuration from file,
// the default configuration is returned if file is empty.
func Load(file string) (*Configuration, error) {
	cfg := new(Configuration)
	if file != "" {
		if err := configloader.UnmarshalAndExpand(file, cfg); err != nil {
			return nil, errors.WithMessagef(err, "failed to load config %q", file)
		}
		if cfg.LLM == nil && cfg.LLMConfig != "" {
			llmFile := cfg.LLMConfig
			if !filepath.IsAbs(llmFile) {
				llmFile = filepath.Join(filepath.Dir(file), llmFile)
			}
			llm, err := llmfactory.LoadConfig(llmFile)
			if err != nil {
				return nil, errors.WithMessagef(err, "failed to load LLM config %q", llmFile)
			}
			cfg.LLM = llm
		}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDefaults sets the default values of the empty fields
func (c *Configuration) SetDefaults() {
	c.Prompt = values.StringsCoalesce(c.Prompt, orchestrator.DefaultPrompt)

	if c.LLM == nil {
		c.LLM = new(llmfactory.Config)
	}
	if len(c.LLM.Providers) == 0 {
		c.LLM.Providers = []*llmfactory.ProviderConfig{
			{
				Name:         DefaultProviderName,
				APIType:      string(llms.ProviderOllama),
				BaseURL:      ollama.DefaultBaseURL,
				DefaultModel: ollama.DefaultModel,
			},
		}
	}
	c.LLM.DefaultProvider = values.StringsCoalesce(c.LLM.DefaultProvider, c.LLM.Providers[0].Name)

	c.Weather.BaseURL = values.StringsCoalesce(c.Weather.BaseURL, weather.DefaultBaseURL)
	c.Launcher.Platform = values.StringsCoalesce(c.Launcher.Platform, runtime.GOOS)
	if c.Launcher.SettleTimeout == 0 {
		c.Launcher.SettleTimeout = Duration(launcher.DefaultSettleTimeout)
	}
	c.Browser.AssistantURL = values.StringsCoalesce(c.Browser.AssistantURL, browser.DefaultAssistantURL)
}

// Validate returns error if the configuration is invalid
func (c *Configuration) Validate() error {
	if err := validateURL("weather.base_url", c.Weather.BaseURL); err != nil {
		return err
	}
	if err := validateURL("browser.assistant_url", c.Browser.AssistantURL); err != nil {
		return err
	}
	if c.Launcher.SettleTimeout.TimeDuration() > time.Minute {
		return errors.Newf("launcher.settle_timeout must not exceed 1m: %s", c.Launcher.SettleTimeout)
	}
	for _, p := range c.LLM.Providers {
		if p.Name == "" {
			return errors.New("llm.providers: name is required")
		}
	}
	return nil
}

func validateURL(field, value string) error {
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Newf("%s: invalid URL: %q", field, value)
	}
	return nil
}
