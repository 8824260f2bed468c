// Package cli holds the soc2ctl subcommands.
package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/ajy0127/soc2-report-reviewer/internal/application/pipeline"
	"github.com/ajy0127/soc2-report-reviewer/internal/domain/runs"
)

func printSuccess(w io.Writer, msg string) {
	green := color.New(color.FgGreen)
	green.Fprintf(w, "✓ %s\n", msg)
}

func printWarning(w io.Writer, msg string) {
	yellow := color.New(color.FgYellow)
	yellow.Fprintf(w, "! %s\n", msg)
}

func printFailure(w io.Writer, msg string) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprintf(w, "✗ %s\n", msg)
}

// printOutcome writes a human summary of a run.
func printOutcome(w io.Writer, out pipeline.Outcome) {
	fmt.Fprintln(w)
	switch out.Status {
	case runs.StatusSuccess:
		printSuccess(w, "Analysis complete")
	case runs.StatusPartialSuccess:
		printWarning(w, "Analysis stored, notification not delivered")
	case runs.StatusSkipped:
		printWarning(w, "Skipped: "+out.Message)
	default:
		printFailure(w, fmt.Sprintf("Failed at %s: %s", out.Stage, out.Kind))
	}

	bold := color.New(color.Bold)
	bold.Fprintf(w, "Run:      ")
	fmt.Fprintln(w, out.RunID)
	bold.Fprintf(w, "Report:   ")
	fmt.Fprintf(w, "%s/%s\n", out.Bucket, out.Key)
	if out.ArtifactKey != "" {
		bold.Fprintf(w, "Analysis: ")
		fmt.Fprintf(w, "%s/%s\n", out.ArtifactBucket, out.ArtifactKey)
	}
	if out.QualityRating != nil {
		bold.Fprintf(w, "Rating:   ")
		fmt.Fprintf(w, "%s/10\n", pipeline.FormatRating(*out.QualityRating))
	}
	if out.Mode != "" {
		bold.Fprintf(w, "OCR:      ")
		fmt.Fprintf(w, "%s, %d pages\n", out.Mode, out.Pages)
	}
	if out.Message != "" && out.Status != runs.StatusSkipped {
		bold.Fprintf(w, "Error:    ")
		fmt.Fprintln(w, out.Message)
	}
	fmt.Fprintf(w, "Took %s\n", out.Duration.Round(time.Millisecond))
}
