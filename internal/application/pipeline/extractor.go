package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/ajy0127/soc2-report-reviewer/internal/application"
	"github.com/ajy0127/soc2-report-reviewer/internal/application/retry"
	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
)

// pageObjectRe matches page objects but not the /Pages tree node.
var pageObjectRe = regexp.MustCompile(`/Type\s*/Page(?:[^s]|$)`)

// EstimatePages counts page objects in a PDF. Documents that keep their
// page tree in compressed object streams report 0.
func EstimatePages(pdf []byte) int {
	return len(pageObjectRe.FindAllIndex(pdf, -1))
}

// TextExtractor obtains the document's text lines from the OCR service.
type TextExtractor struct {
	Detector        report.TextDetector
	Clock           application.Clock
	Retry           retry.Policy
	SyncMaxBytes    int64
	SyncMaxPages    int
	PollInterval    time.Duration
	PollMaxInterval time.Duration
	MaxWait         time.Duration
	Logger          *slog.Logger
}

func (e *TextExtractor) clock() application.Clock {
	if e.Clock == nil {
		return application.SystemClock{}
	}
	return e.Clock
}

// Extract picks the synchronous call for small single-page documents and
// the asynchronous job for everything else.
func (e *TextExtractor) Extract(ctx context.Context, req report.AnalysisRequest, body []byte) (report.ExtractedDocument, error) {
	log := logger(e.Logger)
	pages := EstimatePages(body)
	if pages == 0 {
		pages = 1
	}

	var (
		doc report.ExtractedDocument
		err error
	)
	if int64(len(body)) <= e.SyncMaxBytes && pages <= e.SyncMaxPages {
		log.Info("pipeline.extract.start", "mode", report.ModeSync, "bytes", len(body), "estimated_pages", pages)
		doc, err = e.extractSync(ctx, body)
		if errors.Is(err, report.ErrDocumentTooLarge) {
			log.Info("pipeline.extract.fallback", "reason", err.Error())
			doc, err = e.extractAsync(ctx, req)
		}
	} else {
		log.Info("pipeline.extract.start", "mode", report.ModeAsync, "bytes", len(body), "estimated_pages", pages)
		doc, err = e.extractAsync(ctx, req)
	}
	if err != nil {
		return report.ExtractedDocument{}, err
	}
	if len(doc.Lines) == 0 {
		return report.ExtractedDocument{}, report.NewError(report.KindExtraction, report.StageExtracting, "no text detected in document", nil)
	}
	log.Info("pipeline.extract.ok", "mode", doc.Mode, "lines", len(doc.Lines), "pages", doc.Pages)
	return doc, nil
}

func (e *TextExtractor) extractSync(ctx context.Context, body []byte) (report.ExtractedDocument, error) {
	var page report.DetectionPage
	err := e.call(ctx, "detect", func(ctx context.Context) error {
		var err error
		page, err = e.Detector.DetectText(ctx, body)
		return err
	})
	if errors.Is(err, report.ErrDocumentTooLarge) {
		return report.ExtractedDocument{}, err
	}
	if err != nil {
		return report.ExtractedDocument{}, e.wrap(ctx, "synchronous detection failed", err)
	}
	return report.ExtractedDocument{Lines: page.Lines, Pages: max(page.Pages, 1), Mode: report.ModeSync}, nil
}

func (e *TextExtractor) extractAsync(ctx context.Context, req report.AnalysisRequest) (report.ExtractedDocument, error) {
	log := logger(e.Logger)
	clock := e.clock()

	var jobID string
	err := e.call(ctx, "start", func(ctx context.Context) error {
		var err error
		jobID, err = e.Detector.StartTextDetection(ctx, req.Bucket, req.Key)
		return err
	})
	if err != nil {
		return report.ExtractedDocument{}, e.wrap(ctx, "start detection job", err)
	}

	start := clock.Now()
	deadline := start.Add(e.MaxWait)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	interval := e.PollInterval
	polls := 0

	for {
		var page report.JobPage
		err := e.call(ctx, "poll", func(ctx context.Context) error {
			var err error
			page, err = e.Detector.GetTextDetection(ctx, jobID, "")
			return err
		})
		if err != nil {
			return report.ExtractedDocument{}, e.wrap(ctx, "poll detection job "+jobID, err)
		}
		polls++

		switch page.Status {
		case report.JobSucceeded, report.JobPartialSuccess:
			if page.Status == report.JobPartialSuccess {
				log.Warn("pipeline.extract.partial", "job_id", jobID, "message", page.StatusMessage)
			}
			log.Info("pipeline.extract.job_done", "job_id", jobID, "polls", polls)
			return e.collect(ctx, jobID, page.DetectionPage)
		case report.JobFailed:
			return report.ExtractedDocument{}, report.NewError(report.KindExtraction, report.StageExtracting,
				fmt.Sprintf("detection job %s failed: %s", jobID, page.StatusMessage), nil)
		}

		now := clock.Now()
		if !now.Before(deadline) {
			return report.ExtractedDocument{}, report.NewError(report.KindExtractionTimeout, report.StageExtracting,
				fmt.Sprintf("detection job %s still %s after %s", jobID, page.Status, now.Sub(start).Round(time.Second)), nil)
		}
		wait := min(interval, deadline.Sub(now))
		log.Debug("pipeline.extract.poll", "job_id", jobID, "status", page.Status, "next_in", wait)
		if err := clock.Sleep(ctx, wait); err != nil {
			return report.ExtractedDocument{}, e.wrap(ctx, "waiting for detection job "+jobID, err)
		}
		interval *= 2
		if e.PollMaxInterval > 0 && interval > e.PollMaxInterval {
			interval = e.PollMaxInterval
		}
	}
}

// collect follows NextToken until every result page has been read.
func (e *TextExtractor) collect(ctx context.Context, jobID string, first report.DetectionPage) (report.ExtractedDocument, error) {
	doc := report.ExtractedDocument{Mode: report.ModeAsync, Pages: first.Pages}
	doc.Lines = append(doc.Lines, first.Lines...)
	next := first.NextToken
	for next != "" {
		var page report.JobPage
		token := next
		err := e.call(ctx, "page", func(ctx context.Context) error {
			var err error
			page, err = e.Detector.GetTextDetection(ctx, jobID, token)
			return err
		})
		if err != nil {
			return report.ExtractedDocument{}, e.wrap(ctx, "read detection results", err)
		}
		doc.Lines = append(doc.Lines, page.Lines...)
		doc.Pages = max(doc.Pages, page.Pages)
		next = page.NextToken
	}
	return doc, nil
}

// call retries transient OCR failures under the extractor's policy.
func (e *TextExtractor) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	log := logger(e.Logger)
	_, err := retry.Do(ctx, e.clock(), e.Retry, report.IsTransient, func(ctx context.Context, attempt int) error {
		err := fn(ctx)
		if err != nil && report.IsTransient(err) {
			log.Warn("pipeline.extract.transient", "op", op, "attempt", attempt, "error", err)
		}
		return err
	})
	return err
}

func (e *TextExtractor) wrap(ctx context.Context, msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return report.NewError(report.KindExtractionTimeout, report.StageExtracting, msg+": extraction budget exhausted", err)
	}
	return report.NewError(report.KindExtraction, report.StageExtracting, msg, err)
}
