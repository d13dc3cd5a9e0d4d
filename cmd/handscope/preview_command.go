package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ayusman/handscope/internal/capture"
	"github.com/ayusman/handscope/internal/server"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var frame int
	var output string

	cmd := &cobra.Command{
		Use:   "preview <video>",
		Short: "Write one frame annotated with regions, cards and chips as JPEG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if frame < 0 {
				return fmt.Errorf("--frame must not be negative")
			}
			if output == "" {
				output = "preview.jpg"
			}

			data, err := server.RenderPreview(cfg.DetectorConfig(), capture.NewFileSource(args[0]), frame)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write preview: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote frame %d of %s to %s\n", frame, args[0], output)
			return nil
		},
	}

	cmd.Flags().IntVar(&frame, "frame", 0, "Frame index to render")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output JPEG path (default preview.jpg)")
	return cmd
}
