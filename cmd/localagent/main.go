// Package main provides the localagent CLI entrypoint.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/localagent", "cmd")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCmd(os.Stdout)
	if err := cmd.ExecuteContext(ctx); err != nil {
		logger.KV(xlog.ERROR, "status", "failed", "err", err.Error())
		stop()
		os.Exit(1)
	}
}
