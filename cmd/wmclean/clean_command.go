package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"wmclean/internal/config"
	"wmclean/internal/fileutil"
	"wmclean/internal/metrics"
	"wmclean/internal/pipeline"
)

type cleanFlags struct {
	outputDir   string
	kind        string
	mode        string
	tier        string
	targetColor string
	dilate      int
	jsonOutput  bool
	noProgress  bool
}

type cleanOutcome struct {
	Source string          `json:"source"`
	Output string          `json:"output"`
	Bytes  int             `json:"bytes"`
	Report pipeline.Report `json:"report"`
}

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var flags cleanFlags

	cmd := &cobra.Command{
		Use:   "clean <file>...",
		Short: "Remove watermarks from files now",
		Long: "Clean each file and write <name>_cleaned.<ext> into the output directory.\n" +
			"Remote providers are tried in configuration order; units they cannot\n" +
			"repair are filled locally.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			kind, err := pipeline.ParseKind(flags.kind)
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			cleaner, err := ctx.newCleaner(logger, metrics.New())
			if err != nil {
				return err
			}

			outputDir := strings.TrimSpace(flags.outputDir)
			if outputDir == "" {
				outputDir = cfg.Paths.OutputDir
			}
			if outputDir, err = config.ExpandPath(outputDir); err != nil {
				return err
			}
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}

			var dilate *int
			if cmd.Flags().Changed("dilate") {
				dilate = &flags.dilate
			}
			showProgress := !flags.noProgress && !flags.jsonOutput && isTerminal(cmd.ErrOrStderr())

			outcomes := make([]cleanOutcome, 0, len(args))
			for _, arg := range args {
				source, err := config.ExpandPath(arg)
				if err != nil {
					return err
				}
				data, err := os.ReadFile(source)
				if err != nil {
					return fmt.Errorf("read %s: %w", arg, err)
				}

				var bar *unitProgress
				req := pipeline.Request{
					Data:         data,
					Name:         filepath.Base(source),
					Kind:         kind,
					ColorMode:    flags.mode,
					Tier:         flags.tier,
					TargetColor:  flags.targetColor,
					DilateRadius: dilate,
				}
				if showProgress {
					bar = newUnitProgress(cmd.ErrOrStderr(), filepath.Base(source))
					req.Progress = bar.update
				}

				result, err := cleaner.Clean(cmd.Context(), req)
				bar.finish()
				if err != nil {
					return fmt.Errorf("clean %s: %w", arg, err)
				}

				target := fileutil.UniquePath(filepath.Join(outputDir, pipeline.OutputName(source, result.Extension)))
				if err := fileutil.WriteAtomic(target, result.Data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", target, err)
				}
				outcomes = append(outcomes, cleanOutcome{
					Source: source,
					Output: target,
					Bytes:  len(result.Data),
					Report: result.Report,
				})
			}

			if flags.jsonOutput {
				return writeJSON(cmd, outcomes)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderCleanOutcomes(outcomes))
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.outputDir, "output-dir", "o", "", "Directory for cleaned files (default paths.output_dir)")
	cmd.Flags().StringVarP(&flags.kind, "kind", "k", "", "Media kind: image, document, or video (default: detect)")
	cmd.Flags().StringVarP(&flags.mode, "mode", "m", "", "Colour mode: gray, red, blue, green, yellow, all, custom")
	cmd.Flags().StringVarP(&flags.tier, "tier", "t", "", "Sensitivity tier: light, medium, aggressive")
	cmd.Flags().StringVar(&flags.targetColor, "target-color", "", "Hex colour for the custom mode, e.g. #ff8000")
	cmd.Flags().IntVar(&flags.dilate, "dilate", 0, "Mask dilation radius in pixels")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Print results as JSON")
	cmd.Flags().BoolVar(&flags.noProgress, "no-progress", false, "Disable the progress bar")
	return cmd
}

func renderCleanOutcomes(outcomes []cleanOutcome) string {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		rep := o.Report
		degraded := ""
		if rep.Degraded() {
			degraded = " (degraded)"
		}
		rows = append(rows, []string{
			filepath.Base(o.Source),
			formatLabel(string(rep.Kind)),
			strconv.Itoa(rep.Units),
			strconv.Itoa(rep.Remote),
			strconv.Itoa(rep.Local),
			strconv.Itoa(rep.Skipped),
			strconv.Itoa(rep.Passthrough) + degraded,
			formatBytes(o.Bytes),
			o.Output,
		})
	}
	return renderTable(
		[]string{"File", "Kind", "Units", "Remote", "Local", "Skipped", "Passthrough", "Size", "Output"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}

// unitProgress draws a progress bar once the unit total is known.
type unitProgress struct {
	out   io.Writer
	label string

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func newUnitProgress(out io.Writer, label string) *unitProgress {
	return &unitProgress{out: out, label: label}
}

func (p *unitProgress) update(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription(p.label),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = p.bar.Set(done)
}

func (p *unitProgress) finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
