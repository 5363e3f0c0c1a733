package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mue/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput bool
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "mue",
		Short:         "Mue manages the custom background library of the Mue new tab page",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newListCmd(cfg, &jsonOutput),
		newShowCmd(cfg, &jsonOutput),
		newAddCmd(cfg, &jsonOutput),
		newRmCmd(cfg, &jsonOutput),
		newClearCmd(cfg),
		newFolderCmd(cfg, &jsonOutput),
		newRenameCmd(cfg, &jsonOutput),
		newPickCmd(cfg, &jsonOutput),
		newBackfillCmd(cfg, &jsonOutput),
		newStorageCmd(cfg, &jsonOutput),
		newMigrateCmd(cfg, &jsonOutput),
		newExportCmd(cfg, &jsonOutput),
		newImportCmd(cfg, &jsonOutput),
		newConfigCmd(cfg),
		newTokenCmd(&jsonOutput),
	)

	return cmd
}
