package launcher

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/localagent/pkg/metricskey"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/localagent/tools", "launcher")

// Opener launches applications with the platform Launcher
// and awaits the launch outcome.
type Opener struct {
	launcher Launcher
	runner   Runner
	settle   time.Duration
}

// NewOpener returns Opener.
// If settle is zero, DefaultSettleTimeout is used.
func NewOpener(l Launcher, r Runner, settle time.Duration) *Opener {
	if settle <= 0 {
		settle = DefaultSettleTimeout
	}
	return &Opener{
		launcher: l,
		runner:   r,
		settle:   settle,
	}
}

// Platform returns the platform of the launcher
func (o *Opener) Platform() string {
	return o.launcher.Platform()
}

// Open starts the application and waits for the launch outcome.
// It returns ErrUnsupportedPlatform without starting anything,
// if the platform has no command for the application,
// or an error matching ErrLaunchFailed if the application failed to start.
func (o *Opener) Open(ctx context.Context, app App, args ...string) (*Result, error) {
	platform := o.launcher.Platform()

	cmd, err := o.launcher.Command(app, args...)
	if err != nil {
		if errors.Is(err, ErrUnsupportedPlatform) {
			metricskey.StatsLaunchesUnsupported.IncrCounter(1, platform, string(app))
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "unsupported_platform",
				"platform", platform,
				"app", app,
			)
		}
		return nil, err
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "starting",
		"platform", platform,
		"app", app,
		"command", cmd.String(),
	)

	task, err := o.runner.Start(ctx, cmd)
	if err != nil {
		metricskey.StatsLaunchesFailed.IncrCounter(1, platform, string(app))
		res := &Result{
			Command:  cmd.String(),
			ExitCode: -1,
			Err:      err,
		}
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "failed_to_start",
			"command", res.Command,
			"err", err.Error(),
		)
		return res, res.Failure()
	}

	res := task.Wait(ctx, o.settle)
	if err = res.Failure(); err != nil {
		metricskey.StatsLaunchesFailed.IncrCounter(1, platform, string(app))
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "launch_failed",
			"command", res.Command,
			"exit_code", res.ExitCode,
			"stderr", res.Stderr,
			"err", err.Error(),
		)
		return res, err
	}

	metricskey.StatsLaunchesSucceeded.IncrCounter(1, platform, string(app))
	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "launched",
		"command", res.Command,
		"running", res.Running,
		"exit_code", res.ExitCode,
	)
	return res, nil
}
