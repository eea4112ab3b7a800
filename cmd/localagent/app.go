package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/localagent/callbacks"
	"github.com/effective-security/localagent/config"
	"github.com/effective-security/localagent/orchestrator"
	"github.com/effective-security/localagent/pkg/llmfactory"
	"github.com/effective-security/localagent/pkg/llms"
	"github.com/effective-security/localagent/pkg/llmutils"
	"github.com/effective-security/localagent/pkg/runctx"
	"github.com/effective-security/localagent/tools"
	"github.com/effective-security/localagent/tools/browser"
	"github.com/effective-security/localagent/tools/calculator"
	"github.com/effective-security/localagent/tools/launcher"
	"github.com/effective-security/localagent/tools/weather"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"
)

// newRunner returns the process runner for the launcher tools
var newRunner = func() launcher.Runner {
	return launcher.NewExecRunner()
}

type options struct {
	cfgFile  string
	prompt   string
	provider string
	model    string
	platform string
	debug    bool
	verbose  bool
	jsonOut  bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	o := new(options)

	root := &cobra.Command{
		Use:   "localagent",
		Short: "Ask a local LLM and run the tools it calls",
		Long: `localagent sends a prompt to a local LLM with the registered tools,
and runs the tool calls of the response:

  get_current_weather      hourly temperature forecast from Open-Meteo
  open_calculator          opens the calculator application
  open_chrome_with_claude  opens Chrome with a query to Claude AI`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogging(o.debug)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := o.run(cmd.Context(), out)
			return err
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&o.cfgFile, "cfg", "", "Path to the configuration file")
	flags.StringVar(&o.platform, "platform", "", "Platform to launch applications for: windows|darwin|linux, default is the host OS")
	flags.BoolVar(&o.debug, "debug", false, "Enable debug logging")

	root.Flags().StringVar(&o.prompt, "prompt", "", "Prompt to send to the model")
	root.Flags().StringVar(&o.provider, "provider", "", "Name or API type of the LLM provider from the configuration")
	root.Flags().StringVar(&o.model, "model", "", "Model to use, default is the provider's default model")
	root.Flags().BoolVarP(&o.verbose, "verbose", "v", false, "Print the details of the run")
	root.Flags().BoolVar(&o.jsonOut, "json", false, "Print the run report as JSON")

	root.AddCommand(newToolsCmd(o, out))
	return root
}

func newToolsCmd(o *options, out io.Writer) *cobra.Command {
	var schema bool
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools advertised to the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(o.cfgFile)
			if err != nil {
				return err
			}
			reg, err := newRegistry(cfg, values.StringsCoalesce(o.platform, cfg.Launcher.Platform), newRunner())
			if err != nil {
				return err
			}
			if schema {
				fmt.Fprintln(out, llmutils.ToJSONIndent(reg.Definitions()))
				return nil
			}
			fmt.Fprint(out, tools.GetDescriptions(reg.Tools()...))
			return nil
		},
	}
	cmd.Flags().BoolVar(&schema, "schema", false, "Print the tool definitions with the parameters schema")
	return cmd
}

func setupLogging(debug bool) {
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	if debug {
		xlog.SetGlobalLogLevel(xlog.DEBUG)
	} else {
		xlog.SetGlobalLogLevel(xlog.INFO)
	}
}

// newRegistry returns the registry of the tools configured for the platform
func newRegistry(cfg *config.Configuration, platform string, runner launcher.Runner) (*tools.Registry, error) {
	wt, err := weather.New()
	if err != nil {
		return nil, err
	}
	wt.WithBaseURL(cfg.Weather.BaseURL).
		WithTimeout(cfg.Weather.Timeout.TimeDuration())

	opener := launcher.NewOpener(launcher.ForPlatform(platform), runner, cfg.Launcher.SettleTimeout.TimeDuration())

	ct, err := calculator.New(opener)
	if err != nil {
		return nil, err
	}
	bt, err := browser.New(opener)
	if err != nil {
		return nil, err
	}
	bt.WithAssistantURL(cfg.Browser.AssistantURL)

	return tools.NewRegistry(wt, ct, bt)
}

// selectModel returns the model for the provider and model flags.
// The provider is a name from the configuration, or an API type: OLLAMA, OPENAI
func selectModel(f llmfactory.Factory, provider, model string) (llms.Model, error) {
	switch {
	case provider == "" && model == "":
		return f.DefaultModel()
	case provider == "":
		return f.ModelByName(model)
	}

	llm, err := f.ModelByProvider(provider, model)
	if errors.Is(err, llmfactory.ErrProviderNotFound) && model == "" {
		if byType, typeErr := f.ModelByType(provider); typeErr == nil {
			return byType, nil
		}
	}
	return llm, err
}

func (o *options) run(ctx context.Context, out io.Writer) (*orchestrator.Report, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, err
	}

	llm, err := selectModel(llmfactory.New(cfg.LLM), o.provider, o.model)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create LLM")
	}

	platform := values.StringsCoalesce(o.platform, cfg.Launcher.Platform)
	reg, err := newRegistry(cfg, platform, newRunner())
	if err != nil {
		return nil, err
	}

	mode := callbacks.ModeDefault
	if o.verbose {
		mode = callbacks.ModeVerbose
	}
	scratchpad := callbacks.NewScratchpad(mode)
	cb := callbacks.NewFanout(
		callbacks.NewPackageLogger(logger),
		scratchpad,
	)
	if !o.jsonOut {
		cb.Add(callbacks.NewPrinter(out, mode))
	}

	orch, err := orchestrator.New(llm, reg, orchestrator.WithCallback(cb))
	if err != nil {
		return nil, err
	}

	runCtx := runctx.New("")
	ctx = runctx.WithRunContext(ctx, runCtx)
	logger.ContextKV(ctx, xlog.INFO,
		"status", "run_started",
		"run_id", runCtx.RunID(),
		"provider", llm.GetProviderType(),
		"model", llm.GetName(),
		"platform", platform,
	)

	scratchpad.StartRun(ctx)
	report, err := orch.Run(ctx, values.StringsCoalesce(o.prompt, cfg.Prompt))
	stats, transcript := scratchpad.EndRun(ctx)
	if stats != nil {
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "run_stats",
			"stats", llmutils.ToJSON(stats),
		)
	}
	if o.verbose {
		_, _ = os.Stderr.Write(transcript)
	}
	if err != nil {
		return nil, err
	}

	if o.jsonOut {
		fmt.Fprintln(out, llmutils.ToJSONIndent(report))
	}
	return report, nil
}
