package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ajy0127/soc2-report-reviewer/internal/application"
	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
	"github.com/ajy0127/soc2-report-reviewer/internal/domain/runs"
)

// RunDateTag is set on the input object after its analysis is stored.
const RunDateTag = "report-run-date"

// sideEffectTimeout bounds ledger writes and alerts, which run even after
// the invocation context is done.
const sideEffectTimeout = 10 * time.Second

// Recorder receives pipeline metrics. A nil Recorder disables them.
type Recorder interface {
	ObserveStage(stage report.Stage, d time.Duration)
	RunFinished(status runs.Status, kind report.Kind)
}

// Orchestrator drives one trigger through every stage, forward only:
// Validating, Retrieving, Extracting, Analyzing, Persisting, Notifying, Done.
// Retries live inside the stages. It keeps no state between runs.
type Orchestrator struct {
	Validator *EventValidator
	Retriever *DocumentRetriever
	Extractor *TextExtractor
	Analyzer  *ReportAnalyzer
	Results   *ResultStore
	Notifier  *Notifier
	Tags      report.ObjectStore

	Runs    runs.Repository // optional ledger
	Metrics Recorder        // optional
	Clock   application.Clock
	Logger  *slog.Logger

	ExtractionBudget time.Duration
	AnalysisBudget   time.Duration
	ReserveBudget    time.Duration
}

func (o *Orchestrator) clock() application.Clock {
	if o.Clock == nil {
		return application.SystemClock{}
	}
	return o.Clock
}

// HandleEvent runs the pipeline for a raw trigger. An empty runID gets a UUID.
func (o *Orchestrator) HandleEvent(ctx context.Context, raw []byte, runID string) Outcome {
	out := o.begin(runID)
	req, err := o.Validator.Parse(raw)
	if err != nil {
		return o.finish(ctx, out, err)
	}
	return o.process(ctx, req, out)
}

// HandleRequest runs the pipeline for an already-decoded object reference.
func (o *Orchestrator) HandleRequest(ctx context.Context, req report.AnalysisRequest, runID string) Outcome {
	out := o.begin(runID)
	out.Bucket, out.Key = req.Bucket, req.Key
	if err := o.Validator.Check(req); err != nil {
		return o.finish(ctx, out, err)
	}
	return o.process(ctx, req, out)
}

func (o *Orchestrator) begin(runID string) Outcome {
	if runID == "" {
		runID = uuid.NewString()
	}
	return Outcome{RunID: runID, Stage: report.StageValidating, StartedAt: o.clock().Now()}
}

func (o *Orchestrator) process(ctx context.Context, req report.AnalysisRequest, out Outcome) Outcome {
	out.Bucket, out.Key = req.Bucket, req.Key
	log := logger(o.Logger).With("run_id", out.RunID, "bucket", req.Bucket, "key", req.Key)
	log.Info("pipeline.run.start")

	var body []byte
	out.Stage = report.StageRetrieving
	err := o.stage(ctx, report.StageRetrieving, 0, func(ctx context.Context) error {
		var err error
		body, err = o.Retriever.Retrieve(ctx, req)
		return err
	})
	if err != nil {
		return o.finish(ctx, out, err)
	}

	var doc report.ExtractedDocument
	out.Stage = report.StageExtracting
	err = o.stage(ctx, report.StageExtracting, o.ExtractionBudget, func(ctx context.Context) error {
		var err error
		doc, err = o.Extractor.Extract(ctx, req, body)
		return err
	})
	if err != nil {
		return o.finish(ctx, out, err)
	}
	out.Mode, out.Pages = doc.Mode, doc.Pages

	var analysis Analysis
	out.Stage = report.StageAnalyzing
	err = o.stage(ctx, report.StageAnalyzing, o.AnalysisBudget, func(ctx context.Context) error {
		var err error
		analysis, err = o.Analyzer.Analyze(ctx, doc)
		return err
	})
	out.ModelAttempts = analysis.Attempts
	if err != nil {
		return o.finish(ctx, out, err)
	}
	rating := analysis.Result.QualityRating
	out.QualityRating = &rating

	var art Artifact
	out.Stage = report.StagePersisting
	err = o.stage(ctx, report.StagePersisting, 0, func(ctx context.Context) error {
		var err error
		art, err = o.Results.Save(ctx, req, analysis.Result)
		return err
	})
	if err != nil {
		return o.finish(ctx, out, err)
	}
	out.ArtifactBucket, out.ArtifactKey, out.ArtifactURL = art.Bucket, art.Key, art.URL

	out.Stage = report.StageNotifying
	notifyErr := o.stage(ctx, report.StageNotifying, 0, func(ctx context.Context) error {
		_, err := o.Notifier.Notify(ctx, req, analysis.Result, art.URL)
		return err
	})

	out.Timestamp = o.clock().Now().UTC().Format(time.RFC3339)
	o.tag(ctx, log, req, out.Timestamp)

	if notifyErr != nil {
		return o.finish(ctx, out, notifyErr)
	}
	out.Stage = report.StageDone
	return o.finish(ctx, out, nil)
}

// stage runs fn, bounding it by budget (when set) clamped to the invocation
// deadline minus the reserve kept for persistence and notification.
func (o *Orchestrator) stage(ctx context.Context, stage report.Stage, budget time.Duration, fn func(context.Context) error) error {
	start := o.clock().Now()
	defer func() {
		if o.Metrics != nil {
			o.Metrics.ObserveStage(stage, o.clock().Now().Sub(start))
		}
	}()

	if budget > 0 {
		if dl, ok := ctx.Deadline(); ok {
			remaining := dl.Sub(start) - o.ReserveBudget
			if remaining <= 0 {
				return budgetExhausted(stage)
			}
			budget = min(budget, remaining)
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}
	return fn(ctx)
}

func budgetExhausted(stage report.Stage) error {
	kind := report.KindAnalysisService
	if stage == report.StageExtracting {
		kind = report.KindExtractionTimeout
	}
	return report.NewError(kind, stage, "not enough time left in the invocation", context.DeadlineExceeded)
}

// tag records the run date on the input object, keeping its other tags.
// Failures are logged only.
func (o *Orchestrator) tag(ctx context.Context, log *slog.Logger, req report.AnalysisRequest, ts string) {
	if o.Tags == nil {
		return
	}
	existing, err := o.Tags.Tags(ctx, req.Bucket, req.Key)
	if err != nil {
		log.Warn("pipeline.tag.read_failed", "error", err)
		return
	}
	tags := make(map[string]string, len(existing)+1)
	for k, v := range existing {
		tags[k] = v
	}
	tags[RunDateTag] = ts
	if err := o.Tags.SetTags(ctx, req.Bucket, req.Key, tags); err != nil {
		log.Warn("pipeline.tag.write_failed", "error", err)
		return
	}
	log.Info("pipeline.tag.ok", "tag", RunDateTag, "value", ts)
}

// finish maps err to a terminal status, then logs, records and alerts.
func (o *Orchestrator) finish(ctx context.Context, out Outcome, err error) Outcome {
	now := o.clock().Now()
	out.Duration = now.Sub(out.StartedAt)
	if out.Timestamp == "" {
		out.Timestamp = now.UTC().Format(time.RFC3339)
	}

	out.Status = runs.StatusSuccess
	if err != nil {
		out.Message = err.Error()
		var se *report.Error
		if errors.As(err, &se) {
			out.Kind = se.Kind
			if se.Stage != "" {
				out.Stage = se.Stage
			}
		}
		switch out.Kind {
		case report.KindValidation:
			out.Status = runs.StatusSkipped
			out.Stage = report.StageSkipped
		case report.KindNotification:
			out.Status = runs.StatusPartialSuccess
		default:
			out.Status = runs.StatusFailed
		}
	}

	log := logger(o.Logger).With("run_id", out.RunID, "bucket", out.Bucket, "key", out.Key)
	switch out.Status {
	case runs.StatusSuccess:
		log.Info("pipeline.run.done", "artifact", out.ArtifactKey, "duration_ms", out.Duration.Milliseconds())
	case runs.StatusSkipped:
		log.Info("pipeline.run.skipped", "reason", out.Message)
	case runs.StatusPartialSuccess:
		log.Warn("pipeline.run.partial_success", "artifact", out.ArtifactKey, "kind", out.Kind, "error", out.Message)
	default:
		log.Error("pipeline.run.failed", "stage", out.Stage, "kind", out.Kind, "error", out.Message)
	}

	if o.Metrics != nil {
		o.Metrics.RunFinished(out.Status, out.Kind)
	}

	side, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if o.Runs != nil {
		if err := o.Runs.Save(side, out.Run()); err != nil {
			log.Warn("pipeline.ledger.save_failed", "error", err)
		}
	}
	if out.Status == runs.StatusFailed {
		if err := o.Notifier.Alert(side, out); err != nil {
			log.Warn("pipeline.alert.failed", "error", err)
		}
	}
	return out
}
