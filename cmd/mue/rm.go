package main

import (
	"github.com/spf13/cobra"

	"mue/internal/api"
	"mue/internal/config"
)

func newRmCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		positions []int
		sortOrder string
	)

	cmd := &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"delete"},
		Short:   "Delete backgrounds",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(positions) > 0 {
				return cobra.NoArgs(cmd, args)
			}
			return requireAtLeastOneID(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(positions) > 0 {
				return withClient(cfg, func(client *api.Client) error {
					resp, err := client.DeleteAt(cmd.Context(), positions, sortOrder)
					if err != nil {
						return err
					}
					return writeDeleted(resp, len(positions), *jsonOutput)
				})
			}

			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				if len(ids) == 1 {
					if err := client.DeleteBackground(cmd.Context(), ids[0]); err != nil {
						return err
					}
					return writeDeleted(api.DeleteResponse{Deleted: 1}, 1, *jsonOutput)
				}

				resp, err := client.DeleteBackgrounds(cmd.Context(), ids)
				if err != nil {
					return err
				}
				return writeDeleted(resp, len(ids), *jsonOutput)
			})
		},
	}

	cmd.Flags().IntSliceVar(&positions, "at", nil, "delete by position in the listing instead of by id")
	cmd.Flags().StringVar(&sortOrder, "sort", "", "listing order the positions refer to")
	return cmd
}

func writeDeleted(resp api.DeleteResponse, requested int, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(resp)
	}
	if requested == 1 && resp.Deleted == 1 {
		return writePlain("deleted 1 background\n")
	}
	return writePlain("deleted %d of %d backgrounds\n", resp.Deleted, requested)
}

func newClearCmd(cfg *config.Config) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every custom background",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errRequiresConfirmation("clear")
			}
			return withClient(cfg, func(client *api.Client) error {
				if err := client.ClearBackgrounds(cmd.Context()); err != nil {
					return err
				}
				return writePlain("cleared all backgrounds\n")
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deleting every background")
	return cmd
}
