package main

import (
	"github.com/spf13/cobra"

	"mue/internal/api"
	"mue/internal/config"
)

func newPickCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Pick a random background the way the new tab page does",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("offline") {
				offline = cfg.Backgrounds.OfflineMode
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Pick(cmd.Context(), offline)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				if resp.Background == nil {
					return writePlain("No backgrounds.\n")
				}
				return writeBackgroundDetail(*resp.Background)
			})
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "only pick embedded backgrounds")
	return cmd
}

func newBackfillCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Compute missing dimensions and blur hashes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Backfill(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("filled metadata for %d backgrounds\n", resp.Filled)
			})
		},
	}
}

func newStorageCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var persist bool

	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Show storage usage against the quota",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				if persist {
					granted, err := client.RequestPersistence(cmd.Context())
					if err != nil {
						return err
					}
					if !granted.Granted && !*jsonOutput {
						if err := writePlain("persistent storage was not granted\n"); err != nil {
							return err
						}
					}
				}
				usage, err := client.Storage(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(usage)
				}
				return writeStorage(usage)
			})
		},
	}

	cmd.Flags().BoolVar(&persist, "persist", false, "request durable storage before reporting")
	return cmd
}
