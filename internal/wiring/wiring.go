// Package wiring builds the pipeline and its adapters from configuration.
package wiring

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	awstextract "github.com/aws/aws-sdk-go-v2/service/textract"

	"github.com/ajy0127/soc2-report-reviewer/internal/application"
	"github.com/ajy0127/soc2-report-reviewer/internal/application/pipeline"
	"github.com/ajy0127/soc2-report-reviewer/internal/application/retry"
	"github.com/ajy0127/soc2-report-reviewer/internal/config"
	"github.com/ajy0127/soc2-report-reviewer/internal/domain/ai"
	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
	"github.com/ajy0127/soc2-report-reviewer/internal/domain/runs"
	aiinfra "github.com/ajy0127/soc2-report-reviewer/internal/infra/ai"
	"github.com/ajy0127/soc2-report-reviewer/internal/infra/db/mysql"
	"github.com/ajy0127/soc2-report-reviewer/internal/infra/db/postgres"
	"github.com/ajy0127/soc2-report-reviewer/internal/infra/mail/ses"
	"github.com/ajy0127/soc2-report-reviewer/internal/infra/ocr/textract"
	"github.com/ajy0127/soc2-report-reviewer/internal/infra/storage"
	"github.com/ajy0127/soc2-report-reviewer/internal/logging"
	"github.com/ajy0127/soc2-report-reviewer/internal/middleware"
)

// Store is what the pipeline needs from either object store backend.
type Store interface {
	report.ObjectStore
	report.LinkSigner
	middleware.Pinger
}

// App holds the built pipeline and the resources to release on exit.
type App struct {
	Config   *config.Config
	Pipeline *pipeline.Orchestrator
	Store    Store
	Runs     runs.Repository
	DB       *sql.DB
	Metrics  *middleware.Metrics
}

// Checkers returns the health checks for the configured dependencies.
func (a *App) Checkers(bucket string) map[string]middleware.HealthChecker {
	checks := map[string]middleware.HealthChecker{}
	if a.DB != nil {
		checks["database"] = &middleware.DatabaseHealthChecker{DB: a.DB}
	}
	if bucket == "" {
		bucket = a.Config.Pipeline.OutputBucket
	}
	if bucket != "" {
		checks["storage"] = &middleware.BucketHealthChecker{Store: a.Store, Bucket: bucket}
	}
	return checks
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

// LoadAWS loads the default credential chain for region.
func LoadAWS(ctx context.Context, region string) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// Build validates cfg and connects every adapter.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	awsCfg, err := LoadAWS(ctx, cfg.AWS.Region)
	if err != nil {
		return nil, err
	}

	store, err := newStore(ctx, cfg, awsCfg)
	if err != nil {
		return nil, err
	}

	model, err := aiinfra.NewClient(aiinfra.Provider(cfg.Analysis.Provider), awsCfg, aiinfra.Options{
		BedrockModelID: cfg.Analysis.BedrockModelID,
		OpenAIModel:    cfg.Analysis.OpenAIModel,
		OpenAIAPIKey:   cfg.Analysis.OpenAIAPIKey,
	})
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Store: store, Metrics: middleware.NewMetrics()}
	if err := app.connectLedger(ctx, cfg); err != nil {
		return nil, err
	}

	app.Pipeline = NewPipeline(cfg, Adapters{
		Store:    store,
		Signer:   store,
		Detector: textract.New(awstextract.NewFromConfig(awsCfg)),
		Model:    model,
		Mailer:   ses.NewMailer(sesv2.NewFromConfig(awsCfg), cfg.Notification.Sender),
		Runs:     app.Runs,
		Metrics:  app.Metrics,
	})
	return app, nil
}

func newStore(ctx context.Context, cfg *config.Config, awsCfg aws.Config) (Store, error) {
	switch cfg.Storage.Backend {
	case "minio":
		var ensure []string
		if cfg.Pipeline.OutputBucket != "" {
			ensure = append(ensure, cfg.Pipeline.OutputBucket)
		}
		st, err := storage.NewMinio(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
			ensure...,
		)
		if err != nil {
			return nil, fmt.Errorf("minio init: %w", err)
		}
		return st, nil
	default:
		return storage.NewS3(s3.NewFromConfig(awsCfg)), nil
	}
}

func (a *App) connectLedger(ctx context.Context, cfg *config.Config) error {
	dsn := cfg.DatabaseDSN()
	if cfg.Database.Driver == "" || dsn == "" {
		return nil
	}
	var (
		db      *sql.DB
		err     error
		migrate func(context.Context, *sql.DB) error
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgres.Connect(ctx, dsn)
		migrate = postgres.Migrate
		if err == nil {
			a.Runs = postgres.NewRunRepository(db)
		}
	default:
		db, err = mysql.Connect(ctx, dsn)
		migrate = mysql.Migrate
		if err == nil {
			a.Runs = mysql.NewRunRepository(db)
		}
	}
	if err != nil {
		return fmt.Errorf("%s connect: %w", cfg.Database.Driver, err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("%s migrate: %w", cfg.Database.Driver, err)
	}
	a.DB = db
	return nil
}

// Adapters are the ports NewPipeline plugs into the stages.
type Adapters struct {
	Store    report.ObjectStore
	Signer   report.LinkSigner
	Detector report.TextDetector
	Model    ai.Client
	Mailer   report.Mailer
	Runs     runs.Repository
	Metrics  pipeline.Recorder
	Clock    application.Clock
}

// NewPipeline assembles the stages with the settings from cfg.
func NewPipeline(cfg *config.Config, ad Adapters) *pipeline.Orchestrator {
	clock := ad.Clock
	if clock == nil {
		clock = application.SystemClock{}
	}
	ocrRetry := retry.DefaultPolicy
	ocrRetry.MaxAttempts = cfg.Extraction.MaxAttempts
	modelRetry := retry.DefaultPolicy
	modelRetry.MaxAttempts = cfg.Analysis.MaxAttempts
	modelRetry.BaseDelay = cfg.Analysis.BaseDelay

	return &pipeline.Orchestrator{
		Validator: &pipeline.EventValidator{Logger: logging.New("validator")},
		Retriever: &pipeline.DocumentRetriever{
			Store:    ad.Store,
			MaxBytes: cfg.Pipeline.MaxDocumentBytes,
			Logger:   logging.New("retriever"),
		},
		Extractor: &pipeline.TextExtractor{
			Detector:        ad.Detector,
			Clock:           clock,
			Retry:           ocrRetry,
			SyncMaxBytes:    cfg.Extraction.SyncMaxBytes,
			SyncMaxPages:    cfg.Extraction.SyncMaxPages,
			PollInterval:    cfg.Extraction.PollInterval,
			PollMaxInterval: cfg.Extraction.PollMaxInterval,
			MaxWait:         cfg.Extraction.MaxWait,
			Logger:          logging.New("extractor"),
		},
		Analyzer: &pipeline.ReportAnalyzer{
			Model:             ad.Model,
			Clock:             clock,
			Retry:             modelRetry,
			MaxInputChars:     cfg.Analysis.MaxInputChars,
			MaxTokens:         cfg.Analysis.MaxTokens,
			Temperature:       cfg.Analysis.Temperature,
			RepromptOnInvalid: cfg.Analysis.RepromptOnInvalid,
			Logger:            logging.New("analyzer"),
		},
		Results: &pipeline.ResultStore{
			Store:        ad.Store,
			Signer:       ad.Signer,
			OutputBucket: cfg.Pipeline.OutputBucket,
			OutputPrefix: cfg.Pipeline.OutputPrefix,
			LinkTTL:      cfg.Pipeline.ResultLinkTTL,
			Logger:       logging.New("results"),
		},
		Notifier: &pipeline.Notifier{
			Mailer:         ad.Mailer,
			Recipient:      cfg.Notification.Stakeholder,
			AlertRecipient: cfg.Notification.Alert,
			Logger:         logging.New("notifier"),
		},
		Tags:             ad.Store,
		Runs:             ad.Runs,
		Metrics:          ad.Metrics,
		Clock:            clock,
		Logger:           logging.New("pipeline"),
		ExtractionBudget: cfg.Extraction.Budget,
		AnalysisBudget:   cfg.Analysis.Budget,
		ReserveBudget:    cfg.Pipeline.ReserveBudget,
	}
}

// ShutdownTimeout bounds how long entry points wait for in-flight work.
const ShutdownTimeout = 30 * time.Second
