package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/ajy0127/soc2-report-reviewer/internal/config"
	"github.com/ajy0127/soc2-report-reviewer/internal/lambdahandler"
	"github.com/ajy0127/soc2-report-reviewer/internal/logging"
	"github.com/ajy0127/soc2-report-reviewer/internal/wiring"
)

func main() {
	cfg, err := config.Load(config.ResolvePath())
	if err != nil {
		slog.Error("config.load.failed", "error", err)
		os.Exit(1)
	}
	logging.Init(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)

	// clients dibuat sekali per cold start
	app, err := wiring.Build(context.Background(), cfg)
	if err != nil {
		slog.Error("wiring.build.failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	h := &lambdahandler.Handler{Pipeline: app.Pipeline}
	lambda.Start(h.Handle)
}
