package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"wmclean/internal/config"
	"wmclean/internal/fileutil"
	"wmclean/internal/pipeline"
	"wmclean/internal/preview"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var (
		outputPath  string
		mode        string
		tier        string
		targetColor string
		dilate      int
		overlay     string
		noCaption   bool
	)

	cmd := &cobra.Command{
		Use:   "preview <image>",
		Short: "Render the detected watermark mask over an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(source)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			cleaner, err := ctx.newCleaner(logger, nil)
			if err != nil {
				return err
			}

			req := pipeline.Request{Data: data, Name: filepath.Base(source), ColorMode: mode, Tier: tier, TargetColor: targetColor}
			if cmd.Flags().Changed("dilate") {
				req.DilateRadius = &dilate
			}
			inspection, err := cleaner.Inspect(req)
			if err != nil {
				return err
			}

			caption := preview.Caption(formatLabel(string(inspection.Mode)), formatLabel(string(inspection.Tier)), inspection.Mask)
			opts := preview.DefaultOptions()
			if overlay != "" {
				opts.Color = overlay
			}
			if !noCaption {
				opts.Caption = caption
			}
			rendered, err := preview.RenderPNG(inspection.Frame, inspection.Mask, opts)
			if err != nil {
				return err
			}

			target := strings.TrimSpace(outputPath)
			if target == "" {
				stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
				target = fileutil.UniquePath(filepath.Join(cfg.Paths.OutputDir, stem+"_mask.png"))
			} else if target, err = config.ExpandPath(target); err != nil {
				return err
			}
			if err := fileutil.WriteAtomic(target, rendered, 0o644); err != nil {
				return fmt.Errorf("write preview: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, caption)
			fmt.Fprintf(out, "Wrote preview to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Preview PNG path (default <output_dir>/<name>_mask.png)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Colour mode override")
	cmd.Flags().StringVarP(&tier, "tier", "t", "", "Sensitivity tier override")
	cmd.Flags().StringVar(&targetColor, "target-color", "", "Hex colour for the custom mode")
	cmd.Flags().IntVar(&dilate, "dilate", 0, "Mask dilation radius in pixels")
	cmd.Flags().StringVar(&overlay, "overlay", "", "Overlay colour as hex (default #ff00ff)")
	cmd.Flags().BoolVar(&noCaption, "no-caption", false, "Omit the coverage caption")
	return cmd
}
