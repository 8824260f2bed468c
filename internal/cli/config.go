package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ajy0127/soc2-report-reviewer/internal/config"
)

func NewConfigCmd() *cobra.Command {
	var (
		path     string
		validate bool
	)
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			b, err := yaml.Marshal(cfg.Masked())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, string(b))
			if !validate {
				return nil
			}
			if err := cfg.Validate(); err != nil {
				if errors.Is(err, config.ErrInvalidConfig) {
					printFailure(cmd.ErrOrStderr(), err.Error())
				}
				return err
			}
			printSuccess(cmd.ErrOrStderr(), "Configuration is valid")
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "config", "", "Path to config.yaml (default $CONFIG_PATH or ./config.yaml)")
	cmd.Flags().BoolVar(&validate, "validate", false, "Also run validation and fail on problems")
	return cmd
}
