package main

import (
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mue/internal/api"
	"mue/internal/config"
	"mue/internal/format"
)

func newAddCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var folder string

	cmd := &cobra.Command{
		Use:   "add <file|url>...",
		Short: "Add backgrounds from local files or remote image urls",
		Args:  requireAtLeastArgs(1, "at least one file or url is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			urls, paths := splitSources(args)

			return withClient(cfg, func(client *api.Client) error {
				resp := api.UploadResponse{Stored: []api.BackgroundResponse{}}

				if len(paths) > 0 {
					files := make([]api.UploadFile, 0, len(paths))
					for _, path := range paths {
						f, err := os.Open(path)
						if err != nil {
							return err
						}
						defer f.Close()
						files = append(files, api.UploadFile{
							Name:      filepath.Base(path),
							MediaType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
							Body:      f,
						})
					}
					uploaded, err := client.Upload(cmd.Context(), files, folder)
					if err != nil {
						return err
					}
					resp = uploaded
				}

				for _, rawURL := range urls {
					bg, err := client.AddURL(cmd.Context(), api.AddURLRequest{URL: rawURL, Folder: folder})
					if err != nil {
						resp.Failed = append(resp.Failed, api.UploadFailure{Name: rawURL, Error: err.Error()})
						continue
					}
					resp.Stored = append(resp.Stored, bg)
				}

				if *jsonOutput {
					return writeJSON(resp)
				}
				for _, bg := range resp.Stored {
					if err := writePlain("added %s\n", format.BackgroundLine(bg)); err != nil {
						return err
					}
				}
				for _, failure := range resp.Failed {
					if err := writePlain("failed %s: %s\n", failure.Name, failure.Error); err != nil {
						return err
					}
				}
				if resp.Aborted {
					return writePlain("stopped early: storage quota exceeded\n")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&folder, "folder", "", "folder to file the new backgrounds under")

	return cmd
}

func splitSources(args []string) (urls, paths []string) {
	for _, arg := range args {
		lower := strings.ToLower(strings.TrimSpace(arg))
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
			urls = append(urls, strings.TrimSpace(arg))
			continue
		}
		paths = append(paths, arg)
	}
	return urls, paths
}
