package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dglib/buildpipe/src/config"
)

var (
	cfgFile   string
	verbose   bool
	cfg       *config.Config
	overrides config.Overrides
)

var rootCmd = &cobra.Command{
	Use:   "buildpipe",
	Short: "Sequential build, test and package pipeline",
	Long: `buildpipe compiles, tests, archives and packages a static library for every
platform and configuration, then deploys its headers and documentation.

The first failing step ends the run. All output is mirrored to a timestamped
log file.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that don't need it.
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		overrides.Apply(cfg)
		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: buildpipe.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// addOverrideFlags registers the matrix and step overrides shared by run, plan and check.
func addOverrideFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&overrides.Platforms, "platform", nil, "build only these platforms (repeatable)")
	cmd.Flags().StringSliceVar(&overrides.Configurations, "configuration", nil, "build only these configurations (repeatable)")
	cmd.Flags().BoolVar(&overrides.NoDocs, "no-docs", false, "skip documentation generation")
	cmd.Flags().BoolVar(&overrides.NoSamples, "no-samples", false, "skip the samples build during packaging")
	cmd.Flags().BoolVar(&overrides.DocsLenient, "docs-lenient", false, "do not fail on documentation errors")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
