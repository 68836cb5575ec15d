package main

import (
	"github.com/spf13/cobra"

	"github.com/nitro/iiifviewer/internal/shell"
)

func newShellCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "shell <manifest-url> [command...]",
		Short: "Browse a manifest from an interactive shell",
		Long: `Opens the manifest, or the collection, and starts an interactive shell to select the canvas, the choice
alternative and the image parameters, save regions of interest and print the image URLs.

When a command is given after the URL it runs once and the shell exits.`,
		Example: `  iiifviewer shell https://iiif.io/api/cookbook/recipe/0001-mvm-image/manifest.json
  iiifviewer shell s3://bucket/manifest.json render`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cfg.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			client, err := cfg.client(logger)
			if err != nil {
				return err
			}
			client.Interactive = true
			if err := client.InitViewer(); err != nil {
				return err
			}

			viewer := client.Viewer()
			session, err := viewer.Open(cmd.Context(), args[0], cfg.language)
			if err != nil {
				return err
			}
			return shell.RunShell(shell.NewShellCtxt(cmd.Context(), viewer, session), args[1:])
		},
	}
}
