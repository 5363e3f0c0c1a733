package main

import (
	"github.com/spf13/cobra"

	"mue/internal/api"
	"mue/internal/config"
	"mue/internal/format"
)

func newFolderCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "folder <id> <folder>",
		Short: "Move a background to a folder; an empty folder clears it",
		Args:  requireExactlyArgs(2, "id and folder are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := args[1]
			return updateBackground(cmd, cfg, jsonOutput, args[0], api.BackgroundUpdateRequest{Folder: &folder})
		},
	}
}

func newRenameCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a background",
		Args:  requireExactlyArgs(2, "id and name are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[1]
			return updateBackground(cmd, cfg, jsonOutput, args[0], api.BackgroundUpdateRequest{Name: &name})
		},
	}
}

func updateBackground(cmd *cobra.Command, cfg *config.Config, jsonOutput *bool, rawID string, req api.BackgroundUpdateRequest) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	return withClient(cfg, func(client *api.Client) error {
		resp, err := client.UpdateBackground(cmd.Context(), id, req)
		if err != nil {
			return err
		}
		if *jsonOutput {
			return writeJSON(resp)
		}
		return writePlain("%s\n", format.BackgroundLine(resp))
	})
}
