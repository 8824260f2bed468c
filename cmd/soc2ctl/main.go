package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ajy0127/soc2-report-reviewer/internal/cli"
)

var (
	version = "v0.1.0" // Overwritten at build time
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "soc2ctl",
		Short: "Run and inspect SOC 2 report analyses",
		Long: `soc2ctl runs the SOC 2 report analysis pipeline against a stored PDF,
renders stakeholder emails from saved results, and prints the effective configuration.`,
		SilenceUsage: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		cli.NewAnalyzeCmd(),
		cli.NewRenderCmd(),
		cli.NewConfigCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "soc2ctl version %s\n", version)
		},
	}
}
