package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ajy0127/soc2-report-reviewer/internal/application/pipeline"
)

type renderOptions struct {
	resultPath string
	document   string
	to         string
	link       string
	text       bool
}

func NewRenderCmd() *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the stakeholder email for a saved analysis",
		Long: `Validate a saved "<report> - AI Analysis.json" file and print the email
that would be sent for it.

Examples:
  soc2ctl render --result "acme-soc2 - AI Analysis.json" > email.html
  soc2ctl render --result result.json --document acme-soc2.pdf --text`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.resultPath, "result", "", "Path to the analysis JSON")
	cmd.Flags().StringVar(&opts.document, "document", "", "Report name for the subject (default derived from --result)")
	cmd.Flags().StringVar(&opts.to, "to", "", "Recipient shown in the header")
	cmd.Flags().StringVar(&opts.link, "link", "", "Link to the stored analysis")
	cmd.Flags().BoolVar(&opts.text, "text", false, "Print the plain-text alternative instead of HTML")
	_ = cmd.MarkFlagRequired("result")
	return cmd
}

// documentFromResult reverses the artifact naming: "x - AI Analysis.json" -> "x.pdf".
func documentFromResult(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".json")
	base = strings.TrimSuffix(base, " - AI Analysis")
	return base + ".pdf"
}

func runRender(cmd *cobra.Command, opts *renderOptions) error {
	raw, err := os.ReadFile(opts.resultPath)
	if err != nil {
		return err
	}
	result, err := pipeline.ParseAnalysis(string(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", opts.resultPath, err)
	}
	doc := opts.document
	if doc == "" {
		doc = documentFromResult(opts.resultPath)
	}
	msg, err := pipeline.RenderNotification(opts.to, doc, result, opts.link)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.to != "" {
		fmt.Fprintf(out, "To: %s\n", msg.To)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Subject: %s\n", msg.Subject)
	if opts.text {
		fmt.Fprint(out, msg.TextBody)
	} else {
		fmt.Fprint(out, msg.HTMLBody)
	}
	return nil
}
