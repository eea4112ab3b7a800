package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/effective-security/localagent/config"
	"github.com/effective-security/localagent/mocks/mocklauncher"
	"github.com/effective-security/localagent/pkg/llmfactory"
	"github.com/effective-security/localagent/pkg/llms"
	"github.com/effective-security/localagent/tools/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const chatResponse = `{
	"model": "llama3.1",
	"message": {
		"role": "assistant",
		"content": "",
		"tool_calls": [
			{"function": {"name": "get_current_weather", "arguments": {"latitude": "37.77", "longitude": "-122.42"}}},
			{"function": {"name": "open_calculator", "arguments": {}}}
		]
	},
	"done": true,
	"done_reason": "stop",
	"prompt_eval_count": 100,
	"eval_count": 20
}`

type servers struct {
	ollama  *httptest.Server
	weather *httptest.Server
	// model of the last chat request
	model atomic.Value
}

func newServers(t *testing.T, chatStatus int) *servers {
	s := &servers{}
	s.ollama = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			s.model.Store(req.Model)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(chatStatus)
		if chatStatus != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":"model \"llama3.1\" not found"}`))
			return
		}
		_, _ = w.Write([]byte(chatResponse))
	}))
	s.weather = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hourly":{"time":["2024-08-01T00:00"],"temperature_2m":[15.3]}}`))
	}))
	t.Cleanup(s.ollama.Close)
	t.Cleanup(s.weather.Close)
	return s
}

func writeConfig(t *testing.T, s *servers) string {
	cfg := fmt.Sprintf(`prompt: What's the weather in San Francisco? Then open the calculator.
llm:
  default_provider: test
  providers:
    - name: test
      api_type: OLLAMA
      base_url: %s
      default_model: llama3.1
weather:
  base_url: %s
  timeout: 5s
launcher:
  settle_timeout: 100ms
`, s.ollama.URL, s.weather.URL)

	file := filepath.Join(t.TempDir(), "localagent.yaml")
	require.NoError(t, os.WriteFile(file, []byte(cfg), 0o600))
	return file
}

func useRunner(t *testing.T, r launcher.Runner) {
	saved := newRunner
	newRunner = func() launcher.Runner { return r }
	t.Cleanup(func() { newRunner = saved })
}

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func Test_Run(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocklauncher.NewMockRunner(ctrl)
	task := mocklauncher.NewMockTask(ctrl)
	useRunner(t, runner)

	runner.EXPECT().Start(gomock.Any(), launcher.Command{Name: "gnome-calculator"}).Return(task, nil).Times(1)
	task.EXPECT().Wait(gomock.Any(), gomock.Any()).Return(&launcher.Result{
		Command:  "gnome-calculator",
		Started:  true,
		Running:  true,
		ExitCode: -1,
	}).Times(1)

	s := newServers(t, http.StatusOK)
	out, err := execute("--cfg", writeConfig(t, s), "--platform", "linux")
	require.NoError(t, err)

	assert.Contains(t, out, "Prompt: What's the weather in San Francisco? Then open the calculator.\n")
	assert.Contains(t, out, "  - get_current_weather(")
	assert.Contains(t, out, `Tool result: get_current_weather: Weather data: [{"time":"2024-08-01T00:00","temperature":15.3}]`)
	assert.Contains(t, out, "Tool result: open_calculator: Calculator app opened\n")
}

func Test_Run_JSON(t *testing.T) {
	ctrl := gomock.NewController(t)
	// unsupported platform never starts a process
	useRunner(t, mocklauncher.NewMockRunner(ctrl))

	s := newServers(t, http.StatusOK)
	out, err := execute("--cfg", writeConfig(t, s), "--platform", "freebsd", "--json", "--prompt", "weather and calculator")
	require.NoError(t, err)

	var report struct {
		RunID   string `json:"run_id"`
		Prompt  string `json:"prompt"`
		Model   string `json:"model"`
		Results []struct {
			Output string `json:"output"`
			Error  string `json:"error"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "weather and calculator", report.Prompt)
	assert.Equal(t, "llama3.1", report.Model)
	require.Len(t, report.Results, 2)
	assert.Contains(t, report.Results[0].Output, "Weather data: ")
	assert.Equal(t, "Unsupported operating system", report.Results[1].Output)
	assert.Empty(t, report.Results[1].Error)
}

func Test_Run_ModelError(t *testing.T) {
	ctrl := gomock.NewController(t)
	useRunner(t, mocklauncher.NewMockRunner(ctrl))

	s := newServers(t, http.StatusNotFound)
	_, err := execute("--cfg", writeConfig(t, s), "--platform", "linux")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to generate content from LLM")
	assert.Contains(t, err.Error(), `model "llama3.1" not found`)
}

func Test_Run_ModelFlag(t *testing.T) {
	ctrl := gomock.NewController(t)
	useRunner(t, mocklauncher.NewMockRunner(ctrl))

	s := newServers(t, http.StatusOK)
	out, err := execute("--cfg", writeConfig(t, s), "--platform", "freebsd", "--json", "--model", "qwen2.5")
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5", s.model.Load())

	var report struct {
		Model string `json:"model"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "qwen2.5", report.Model)

	_, err = execute("--cfg", writeConfig(t, s), "--platform", "freebsd", "--json", "--provider", "ollama")
	require.NoError(t, err)
	assert.Equal(t, "llama3.1", s.model.Load())
}

func Test_selectModel(t *testing.T) {
	f := llmfactory.New(config.Default().LLM)

	llm, err := selectModel(f, "", "")
	require.NoError(t, err)
	assert.Equal(t, "llama3.1", llm.GetName())

	llm, err = selectModel(f, "", "qwen2.5")
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5", llm.GetName())

	llm, err = selectModel(f, "ollama", "mistral")
	require.NoError(t, err)
	assert.Equal(t, "mistral", llm.GetName())

	// API type is accepted when no provider has the name
	local := llmfactory.New(&llmfactory.Config{
		Providers: []*llmfactory.ProviderConfig{
			{Name: "local", APIType: "OLLAMA", DefaultModel: "llama3.2"},
		},
	})
	llm, err = selectModel(local, "ollama", "")
	require.NoError(t, err)
	assert.Equal(t, llms.ProviderOllama, llm.GetProviderType())
	assert.Equal(t, "llama3.2", llm.GetName())

	_, err = selectModel(f, "OPENAI", "")
	assert.EqualError(t, err, "provider not found: OPENAI")

	_, err = selectModel(f, "missing", "qwen2.5")
	assert.EqualError(t, err, "provider not found: missing")
}

func Test_Run_Errors(t *testing.T) {
	_, err := execute("--cfg", "testdata/missing.yaml")
	assert.Error(t, err)

	s := newServers(t, http.StatusOK)
	_, err = execute("--cfg", writeConfig(t, s), "--provider", "missing")
	assert.EqualError(t, err, "failed to create LLM: provider not found: missing")

	_, err = execute("unexpected")
	assert.Error(t, err)
}

func Test_Tools(t *testing.T) {
	out, err := execute("tools")
	require.NoError(t, err)
	assert.Contains(t, out, "Name: get_current_weather")
	assert.Contains(t, out, "Name: open_calculator")
	assert.Contains(t, out, "Name: open_chrome_with_claude")

	out, err = execute("tools", "--schema")
	require.NoError(t, err)
	var defs []struct {
		Type     string `json:"type"`
		Function struct {
			Name       string         `json:"name"`
			Parameters map[string]any `json:"parameters"`
		} `json:"function"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &defs))
	require.Len(t, defs, 3)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "get_current_weather", defs[0].Function.Name)
	assert.Equal(t, "object", defs[0].Function.Parameters["type"])
}
