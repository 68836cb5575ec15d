package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nitro/iiifviewer/internal/service"
)

func newInspectCmd(cfg *config) *cobra.Command {
	var (
		output   string
		describe bool
	)
	cmd := &cobra.Command{
		Use:   "inspect <manifest-url>",
		Short: "Print the outline of a manifest or a collection",
		Example: `  iiifviewer inspect https://iiif.io/api/cookbook/recipe/0033-choice/manifest.json
  iiifviewer inspect --output json --describe https://example.org/manifest.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cfg.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			client, err := cfg.client(logger)
			if err != nil {
				return err
			}
			if err := client.InitViewer(); err != nil {
				return err
			}

			viewer := client.Viewer()
			session, err := viewer.Open(cmd.Context(), args[0], cfg.language)
			if err != nil {
				return err
			}
			summary, err := viewer.Summary(session)
			if err != nil {
				return err
			}
			if !describe {
				summary.Panels = nil
			}
			return writeSummary(cmd.OutOrStdout(), summary, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format: yaml or json")
	cmd.Flags().BoolVar(&describe, "describe", false, "include the information panels")
	return cmd
}

func writeSummary(w io.Writer, summary service.Summary, output string) error {
	switch output {
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(summary); err != nil {
			return fmt.Errorf("fail to encode the summary: %w", err)
		}
		return encoder.Close()
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(summary); err != nil {
			return fmt.Errorf("fail to encode the summary: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format '%s'", output)
	}
}
