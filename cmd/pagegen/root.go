package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pagegen/pkg/config"
	"pagegen/pkg/logx"
	"pagegen/pkg/version"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "pagegen",
		Short:         "Generate a React application from page sketches",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if flags.debug {
				logx.SetDebug(true)
			}
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to a JSON or YAML config file")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newRunCmd(flags),
		newSecretsCmd(flags),
		newReportCmd(flags),
		newTranscriptCmd(flags),
		newVersionCmd(),
	)
	return root
}

// load reads the config named by --config.
func (f *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.String())
		},
	}
}
