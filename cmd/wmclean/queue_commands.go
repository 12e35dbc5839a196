package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"wmclean/internal/daemon"
	"wmclean/internal/metrics"
	"wmclean/internal/queue"
	"wmclean/internal/workflow"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}

	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueRunCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var kind, mode, tier string

	cmd := &cobra.Command{
		Use:   "add <file>...",
		Short: "Queue files for the daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				out := cmd.OutOrStdout()
				for _, arg := range args {
					item, err := daemon.EnqueueFile(cmd.Context(), store, queue.JobRequest{
						SourcePath: arg,
						Kind:       kind,
						ColorMode:  mode,
						Tier:       tier,
					})
					if err != nil {
						return fmt.Errorf("queue %s: %w", arg, err)
					}
					fmt.Fprintf(out, "Queued job %d: %s\n", item.ID, item.SourcePath)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Media kind override")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Colour mode override")
	cmd.Flags().StringVarP(&tier, "tier", "t", "", "Sensitivity tier override")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(listStatuses)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				items, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "File", "Status", "Progress", "Units", "Remote", "Local", "Updated"},
					buildQueueListRows(items),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print jobs as JSON")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				item, err := store.GetByID(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("job %d not found", ids[0])
				}
				if jsonOutput {
					return writeJSON(cmd, item)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderJobDetail(item))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the job as JSON")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Return failed jobs to pending (all failed jobs when no ids are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				count, err := store.Retry(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retrying %d job(s)\n", count)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Delete jobs from the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				out := cmd.OutOrStdout()
				for _, id := range ids {
					removed, err := store.Remove(cmd.Context(), id)
					if err != nil {
						return err
					}
					if removed {
						fmt.Fprintf(out, "Removed job %d\n", id)
					} else {
						fmt.Fprintf(out, "Job %d not found\n", id)
					}
				}
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearStatuses []string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove jobs (all jobs unless --status is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(clearStatuses)
			if err != nil {
				return err
			}
			for _, status := range statuses {
				if status == queue.StatusProcessing {
					return errors.New("processing jobs cannot be cleared; stop the daemon first")
				}
			}
			return ctx.withStore(func(store *queue.Store) error {
				removed, err := store.Clear(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d job(s)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&clearStatuses, "status", "s", nil, "Only clear jobs with this status (repeatable)")
	return cmd
}

func newQueueRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process pending jobs in the foreground and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			rec := metrics.New()
			cleaner, err := ctx.newCleaner(logger, rec)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				mgr := workflow.NewManager(cfg, store, cleaner, logger, workflow.WithMetrics(rec))
				count, err := mgr.RunPending(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "Processed %d job(s)\n", count)
				if err != nil {
					return err
				}
				if last := mgr.Status(cmd.Context()).LastItem; last != nil && last.Status != queue.StatusCompleted {
					fmt.Fprintf(cmd.OutOrStdout(), "Last job %d ended %s: %s\n", last.ID, last.Status, last.ErrorMessage)
				}
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the queue database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				health, err := store.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				rows := [][]string{
					{"Database", health.DBPath},
					{"Exists", yesNo(health.DatabaseExists)},
					{"Readable", yesNo(health.DatabaseReadable)},
					{"Schema version", strconv.Itoa(health.SchemaVersion)},
					{"Jobs table", yesNo(health.TableExists)},
					{"Integrity", yesNo(health.IntegrityCheck)},
					{"Jobs", strconv.Itoa(health.TotalItems)},
				}
				if len(health.MissingColumns) > 0 {
					rows = append(rows, []string{"Missing columns", strings.Join(health.MissingColumns, ", ")})
				}
				if health.Error != "" {
					rows = append(rows, []string{"Error", health.Error})
				}
				fmt.Fprint(out, renderTable([]string{"Check", "Result"}, rows, nil))
				return nil
			})
		},
	}
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid job id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseStatuses(values []string) ([]queue.Status, error) {
	statuses := make([]queue.Status, 0, len(values))
	for _, value := range values {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func buildQueueListRows(items []*queue.Item) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		status := formatLabel(string(item.Status))
		if item.Status == queue.StatusCompleted && item.Degraded() {
			status += " (degraded)"
		}
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			item.DisplayName(),
			status,
			formatPercent(item.ProgressPercent),
			strconv.Itoa(item.Units),
			strconv.Itoa(item.RemoteUnits),
			strconv.Itoa(item.LocalUnits),
			formatAge(item.UpdatedAt),
		})
	}
	return rows
}

func renderJobDetail(item *queue.Item) string {
	rows := [][]string{
		{"ID", strconv.FormatInt(item.ID, 10)},
		{"Correlation", item.CorrelationID},
		{"Source", item.SourcePath},
		{"Output", dashIfEmpty(item.OutputPath)},
		{"Kind", dashIfEmpty(formatLabel(item.Kind))},
		{"Colour mode", dashIfEmpty(formatLabel(item.ColorMode))},
		{"Tier", dashIfEmpty(formatLabel(item.Tier))},
		{"Status", formatLabel(string(item.Status))},
		{"Progress", fmt.Sprintf("%s %s", formatPercent(item.ProgressPercent), item.ProgressMessage)},
		{"Units", fmt.Sprintf("%d (remote %d, local %d, skipped %d, passthrough %d)",
			item.Units, item.RemoteUnits, item.LocalUnits, item.SkippedUnits, item.PassthroughUnits)},
		{"Provider attempts", strconv.Itoa(item.Attempts)},
		{"Degraded", yesNo(item.Degraded())},
		{"Created", formatAge(item.CreatedAt)},
		{"Updated", formatAge(item.UpdatedAt)},
	}
	if item.ErrorMessage != "" {
		rows = append(rows, []string{"Error", item.ErrorMessage})
	}
	if providers := reportProviders(item.ReportJSON); providers != "" {
		rows = append(rows, []string{"Providers", providers})
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}

// reportProviders summarises per-provider unit counts from a stored report.
func reportProviders(reportJSON string) string {
	if reportJSON == "" {
		return ""
	}
	var rep struct {
		Providers map[string]int `json:"Providers"`
	}
	if err := json.Unmarshal([]byte(reportJSON), &rep); err != nil || len(rep.Providers) == 0 {
		return ""
	}
	names := make([]string, 0, len(rep.Providers))
	for name := range rep.Providers {
		names = append(names, name)
	}
	slices.Sort(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, rep.Providers[name]))
	}
	return strings.Join(parts, ", ")
}
