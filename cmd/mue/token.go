package main

import (
	"github.com/spf13/cobra"

	"mue/internal/auth"
	"mue/internal/config"
)

type tokenResult struct {
	Token string `json:"token"`
	Hash  string `json:"api_token_hash"`
	Saved bool   `json:"saved"`
}

func newTokenCmd(jsonOutput *bool) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate an API token and its api_token_hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.NewToken()
			if err != nil {
				return err
			}
			hash, err := auth.HashToken(token)
			if err != nil {
				return err
			}

			result := tokenResult{Token: token, Hash: hash}
			if save {
				path, err := config.Path()
				if err != nil {
					return err
				}
				if err := config.SetKey(path, "api_token_hash", hash); err != nil {
					return err
				}
				result.Saved = true
			}

			if *jsonOutput {
				return writeJSON(result)
			}
			if err := writePlain("token: %s\napi_token_hash: %s\n", result.Token, result.Hash); err != nil {
				return err
			}
			if result.Saved {
				return writePlain("saved api_token_hash; export MUE_API_TOKEN=%s for the CLI\n", result.Token)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "write the hash to the config file")
	return cmd
}
