package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/ajy0127/soc2-report-reviewer/internal/config"
	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
	"github.com/ajy0127/soc2-report-reviewer/internal/domain/runs"
	"github.com/ajy0127/soc2-report-reviewer/internal/logging"
	"github.com/ajy0127/soc2-report-reviewer/internal/wiring"
)

type analyzeOptions struct {
	configPath string
	bucket     string
	key        string
	jsonOut    bool
	verbose    bool
}

func NewAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the analysis pipeline for one stored PDF",
		Long: `Run every stage for an object already in the bucket: retrieval, OCR,
model analysis, result storage, stakeholder email and tagging.

Examples:
  soc2ctl analyze --bucket soc2-reports --key vendors/acme-soc2.pdf
  soc2ctl analyze --bucket soc2-reports --key vendors/acme-soc2.pdf --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to config.yaml (default $CONFIG_PATH or ./config.yaml)")
	cmd.Flags().StringVar(&opts.bucket, "bucket", "", "Bucket holding the report")
	cmd.Flags().StringVar(&opts.key, "key", "", "Object key of the report")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the invocation response as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show pipeline logs")
	_ = cmd.MarkFlagRequired("bucket")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.ResolvePath()
	}
	return config.Load(path)
}

func runAnalyze(cmd *cobra.Command, opts *analyzeOptions) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level := logging.ParseLevel("WARN")
	if opts.verbose {
		level = logging.ParseLevel(cfg.Log.Level)
	}
	logging.Init(level, "text", cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
	s.Suffix = " Connecting to AWS and the run ledger..."
	s.Start()
	app, err := wiring.Build(ctx, cfg)
	s.Stop()
	if err != nil {
		return err
	}
	defer app.Close()
	if !opts.jsonOut {
		printSuccess(out, "Adapters ready")
	}

	s.Suffix = fmt.Sprintf(" Analyzing %s/%s...", opts.bucket, opts.key)
	s.Start()
	result := app.Pipeline.HandleRequest(ctx, report.AnalysisRequest{Bucket: opts.bucket, Key: opts.key}, "")
	s.Stop()

	if opts.jsonOut {
		return writeJSON(out, result.Response())
	}
	printOutcome(out, result)
	if result.Status == runs.StatusFailed {
		return fmt.Errorf("run %s failed: %s", result.RunID, result.Kind)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

