package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/scttfrdmn/coldfetch/internal/config"
	"github.com/scttfrdmn/coldfetch/pkg/errors"
)

const defaultConfigFile = "coldfetch.yaml"

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(a.configInitCmd(), a.configShowCmd())
	return cmd
}

func (a *app) configInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file with the default settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultConfigFile
			if len(args) == 1 {
				path = args[0]
			}

			if _, err := os.Stat(path); err == nil && !force {
				return errors.NewError(errors.ErrCodeInvalidConfig,
					fmt.Sprintf("%s already exists (use --force to overwrite)", path)).
					WithContext("path", path)
			}

			if err := config.NewDefault().SaveToFile(path); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Wrote default configuration to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func (a *app) configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after applying the file, COLDFETCH_* environment
variables and flags. Secret keys are masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}

			shown := *a.cfg
			shown.Storage.SecretAccessKey = mask(shown.Storage.SecretAccessKey)
			shown.Storage.SessionToken = mask(shown.Storage.SessionToken)

			data, err := yaml.Marshal(&shown)
			if err != nil {
				return errors.Wrap(errors.ErrCodeInternalError, "failed to marshal configuration", err)
			}
			_, err = a.out.Write(data)
			return err
		},
	}
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
