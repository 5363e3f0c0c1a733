package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mue/internal/api"
	"mue/internal/config"
)

func newExportCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Back up every background to the blob store and print the YAML manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput != nil && *jsonOutput {
				return fmt.Errorf("export always emits YAML; remove --json")
			}
			return withClient(cfg, func(client *api.Client) error {
				w := os.Stdout
				if outputPath != "" {
					f, err := os.Create(outputPath)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				return client.Export(cmd.Context(), w)
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default: stdout)")

	return cmd
}

func newImportCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var inputPath string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Restore backgrounds from a YAML backup manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" {
				return errors.New("--input is required")
			}

			return withClient(cfg, func(client *api.Client) error {
				f, err := os.Open(inputPath)
				if err != nil {
					return err
				}
				defer f.Close()

				resp, err := client.Import(cmd.Context(), f)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("imported %d backgrounds\n", resp.Imported)
			})
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "manifest file to import")

	return cmd
}
