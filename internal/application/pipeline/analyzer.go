package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ajy0127/soc2-report-reviewer/internal/application"
	"github.com/ajy0127/soc2-report-reviewer/internal/application/retry"
	"github.com/ajy0127/soc2-report-reviewer/internal/domain/ai"
	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
)

// ReportAnalyzer prompts the model and turns its completion into a
// validated AnalysisResult.
type ReportAnalyzer struct {
	Model             ai.Client
	Clock             application.Clock
	Retry             retry.Policy
	MaxInputChars     int
	MaxTokens         int
	Temperature       float32
	RepromptOnInvalid bool
	Logger            *slog.Logger
}

// Analysis is a validated result plus the number of model calls it took.
type Analysis struct {
	Result   report.AnalysisResult
	Attempts int
}

// Analyze runs the prompt/parse cycle. Attempts is filled in on error too.
func (a *ReportAnalyzer) Analyze(ctx context.Context, doc report.ExtractedDocument) (Analysis, error) {
	log := logger(a.Logger)
	var out Analysis

	text := doc.Text()
	prompt, truncated := BuildPrompt(text, a.MaxInputChars)
	if truncated {
		log.Warn("pipeline.analyze.truncated", "chars", len([]rune(text)), "limit", a.MaxInputChars)
	}
	req := ai.CompletionRequest{
		System:      SystemPrompt,
		Prompt:      prompt,
		MaxTokens:   a.MaxTokens,
		Temperature: a.Temperature,
	}

	completion, err := a.complete(ctx, req, &out)
	if err != nil {
		return out, err
	}
	result, perr := ParseAnalysis(completion)
	if perr != nil && a.RepromptOnInvalid {
		log.Warn("pipeline.analyze.reprompt", "problem", perr.Error())
		req.Prompt = RepromptFor(prompt, completion, perr)
		completion, err = a.complete(ctx, req, &out)
		if err != nil {
			return out, err
		}
		result, perr = ParseAnalysis(completion)
	}
	if perr != nil {
		return out, report.NewError(report.KindAnalysisValidation, report.StageAnalyzing, "model response rejected", perr)
	}

	out.Result = result
	log.Info("pipeline.analyze.ok", "attempts", out.Attempts, "controls", len(result.Controls), "quality_rating", result.QualityRating)
	return out, nil
}

func (a *ReportAnalyzer) complete(ctx context.Context, req ai.CompletionRequest, out *Analysis) (string, error) {
	log := logger(a.Logger)
	clock := a.Clock
	if clock == nil {
		clock = application.SystemClock{}
	}

	var completion string
	_, err := retry.Do(ctx, clock, a.Retry, retryableModelError, func(ctx context.Context, attempt int) error {
		out.Attempts++
		c, err := a.Model.Complete(ctx, req)
		if errors.Is(err, ai.ErrEmptyCompletion) {
			// empty output is a bad answer, not a failed call
			log.Warn("pipeline.analyze.empty", "attempt", attempt)
			completion = ""
			return nil
		}
		if err != nil {
			log.Warn("pipeline.analyze.call_failed", "attempt", attempt, "error", err)
			return err
		}
		completion = c
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", report.NewError(report.KindAnalysisService, report.StageAnalyzing, "analysis budget exhausted", err)
		}
		return "", report.NewError(report.KindAnalysisService, report.StageAnalyzing, "model call failed", err)
	}
	return completion, nil
}

func retryableModelError(err error) bool {
	return report.IsTransient(err) || errors.Is(err, ai.ErrQuotaExceeded)
}
