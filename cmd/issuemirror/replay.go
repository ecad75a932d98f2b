package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/telhawk-systems/issuemirror/internal/middleware"
	"github.com/telhawk-systems/issuemirror/internal/service"
	"gopkg.in/yaml.v3"
)

func newReplayCmd(configPath *string) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "replay [payload.json]",
		Short: "Run one stored webhook payload through the mirror",
		Long: `replay reads a GitLab webhook body from a file (or stdin when the
argument is "-" or omitted), reconciles it against Notion exactly as the
server would, and prints the outcome.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			body, err := readPayload(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := middleware.WithRequestID(cmd.Context(), "replay-"+uuid.NewString())
			outcome, err := a.service.HandlePayload(ctx, body)
			if err != nil {
				return err
			}

			if err := writeOutcome(cmd.OutOrStdout(), output, outcome); err != nil {
				return err
			}
			if outcome.Status == service.OutcomeFailed {
				return fmt.Errorf("reconciliation failed: %s", outcome.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json, yaml")
	return cmd
}

func readPayload(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return body, nil
}

func writeOutcome(w io.Writer, format string, outcome service.Outcome) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(outcome)
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	default:
		return fmt.Errorf("unknown output format %q (supported: json, yaml)", format)
	}
}
