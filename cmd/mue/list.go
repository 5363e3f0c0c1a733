package main

import (
	"github.com/spf13/cobra"

	"mue/internal/api"
	"mue/internal/config"
)

func newListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var sort string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List custom backgrounds",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("sort") {
				sort = cfg.Backgrounds.Sort
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.ListBackgrounds(cmd.Context(), sort)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeBackgroundList(resp)
			})
		},
	}

	cmd.Flags().StringVar(&sort, "sort", "", "sort order (date_asc, date_desc, name_asc, name_desc, size_asc, size_desc)")

	return cmd
}

func newShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one background",
		Args:  requireExactlyArgs(1, "id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.GetBackground(cmd.Context(), id)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeBackgroundDetail(resp)
			})
		},
	}
}
