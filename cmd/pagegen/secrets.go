package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pagegen/pkg/config"
)

func newSecretsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage the encrypted secrets file",
	}
	cmd.AddCommand(newSecretsSetCmd(flags))
	return cmd
}

func newSecretsSetCmd(flags *globalFlags) *cobra.Command {
	var value string
	cmd := &cobra.Command{
		Use:   "set NAME",
		Short: "Store a secret such as ANTHROPIC_API_KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			password := os.Getenv(config.EnvPassword)
			if password == "" {
				if password, err = config.PromptPassword("Secrets password: "); err != nil {
					return err
				}
			}
			if value == "" {
				if value, err = config.PromptPassword(fmt.Sprintf("Value for %s: ", args[0])); err != nil {
					return err
				}
			}
			if value == "" {
				return fmt.Errorf("empty value for %s", args[0])
			}
			if err := config.SetSecretInFile(cfg.SecretsDir, password, args[0], value); err != nil {
				return fmt.Errorf("failed to store secret: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🔐 Stored %s in %s\n", args[0], config.SecretsPath(cfg.SecretsDir))
			return nil
		},
	}
	cmd.Flags().StringVar(&value, "value", "", "Secret value (prompted when omitted)")
	return cmd
}
