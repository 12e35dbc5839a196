package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"wmclean/internal/config"
	"wmclean/internal/daemonctl"
	"wmclean/internal/preflight"
	"wmclean/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var checkProviders bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check dependencies, directories, providers, and the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := isTerminal(out)
			var lines []string

			lines = append(lines, renderSectionHeader("Daemon", colorize)...)
			if state, err := daemonctl.Probe(cfg); err != nil {
				lines = append(lines, renderStatusLine("Daemon", statusWarn, err.Error(), colorize))
			} else if state.Running {
				message := "Running"
				if state.PID > 0 {
					message = fmt.Sprintf("Running (pid %d)", state.PID)
				}
				lines = append(lines, renderStatusLine("Daemon", statusOK, message, colorize))
				lines = append(lines, daemonSnapshotLines(cmd.Context(), cfg, colorize)...)
			} else {
				lines = append(lines, renderStatusLine("Daemon", statusInfo, "Not running", colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			for _, dep := range preflight.CheckSystemDeps(cmd.Context(), cfg) {
				kind, message := statusOK, dep.Command
				if !dep.Available {
					kind = statusError
					if dep.Optional {
						kind = statusWarn
					}
					message = strings.TrimSpace(dep.Detail + "; " + dep.Description)
				}
				lines = append(lines, renderStatusLine(dep.Name, kind, message, colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Directories", colorize)...)
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				lines = append(lines, renderStatusLine(result.Name, resultKind(result), result.Detail, colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Providers", colorize)...)
			if len(cfg.Providers) == 0 {
				lines = append(lines, renderStatusLine("Providers", statusInfo, "None configured; units are filled locally", colorize))
			}
			for _, p := range cfg.Providers {
				if checkProviders {
					result := preflight.CheckProvider(cmd.Context(), p)
					lines = append(lines, renderStatusLine(result.Name, resultKind(result), result.Detail, colorize))
					continue
				}
				kind, message := statusOK, fmt.Sprintf("%s %s, key %s", p.Kind, p.Accepts, keyState(p.APIKey))
				if p.Disabled {
					kind, message = statusInfo, "Disabled"
				} else if p.APIKey == "" {
					kind = statusWarn
				}
				lines = append(lines, renderStatusLine("Provider "+p.Name, kind, message, colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Queue", colorize)...)
			err = ctx.withStore(func(store *queue.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				summary := fmt.Sprintf("%d total, %d pending, %d processing, %d completed, %d failed, %d rejected",
					health.Total, health.Pending, health.Processing, health.Completed, health.Failed, health.Rejected)
				kind := statusOK
				if health.Failed > 0 || health.Rejected > 0 {
					kind = statusWarn
				}
				lines = append(lines, renderStatusLine("Jobs", kind, summary, colorize))
				return nil
			})
			if err != nil {
				lines = append(lines, renderStatusLine("Jobs", statusError, err.Error(), colorize))
			}

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkProviders, "check-providers", false, "Contact provider endpoints")
	return cmd
}

func resultKind(result preflight.Result) statusKind {
	if result.Passed {
		return statusOK
	}
	return statusError
}

func keyState(key string) string {
	if strings.TrimSpace(key) == "" {
		return "missing"
	}
	return "set"
}

// daemonSnapshotLines reports what the running daemon has processed, read
// from its /status endpoint.
func daemonSnapshotLines(ctx context.Context, cfg *config.Config, colorize bool) []string {
	addr := daemonctl.StatusAddr(cfg)
	if addr == "" {
		return []string{renderStatusLine("Snapshot", statusInfo, "daemon.metrics_bind not set", colorize)}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	status, err := daemonctl.FetchStatus(ctx, nil, addr)
	if err != nil {
		return []string{renderStatusLine("Snapshot", statusWarn, err.Error(), colorize)}
	}

	workerKind, workerMessage := statusOK, "Running"
	if !status.Workflow.Running {
		workerKind, workerMessage = statusWarn, "Idle"
	}
	lines := []string{
		renderStatusLine("Worker", workerKind, workerMessage, colorize),
		renderStatusLine("Processed", statusInfo, fmt.Sprintf("%d job(s) since start", status.Workflow.Processed), colorize),
		renderStatusLine("Endpoint", statusInfo, "http://"+status.MetricsAddr, colorize),
	}
	if item := status.Workflow.LastItem; item != nil {
		lines = append(lines, renderStatusLine("Last job", statusInfo,
			fmt.Sprintf("#%d %s (%s)", item.ID, item.DisplayName(), formatLabel(string(item.Status))), colorize))
	}
	if status.Workflow.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusWarn, status.Workflow.LastError, colorize))
	}
	return lines
}
