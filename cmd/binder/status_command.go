package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"binder/internal/api"
	"binder/internal/apiclient"
	"binder/internal/daemonctl"
	"binder/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var runPreflight bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			client, _ := apiclient.New(cfg.Paths.APIBind, cfg.Paths.APIToken)
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), cfg, client)
			if err != nil {
				return err
			}

			if ctx.jsonMode() {
				return writeJSON(cmd, map[string]any{
					"reachable": snapshot.Reachable,
					"status":    snapshot.Status,
				})
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range daemonLines(snapshot, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(stdout, line)
			}
			summary := daemonctl.SummarizeDependencies(snapshot.Status.Dependencies)
			for _, line := range dependencyLines(snapshot.Status.Dependencies, summary, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			if runPreflight {
				for _, line := range renderSectionHeader("Preflight", colorize) {
					fmt.Fprintln(stdout, line)
				}
				results := preflight.RunAll(cmd.Context(), cfg)
				results = append(results, preflight.RunFeatureChecks(cmd.Context(), cfg)...)
				for _, result := range results {
					kind := statusOK
					if !result.Passed {
						kind = statusError
					}
					fmt.Fprintln(stdout, renderStatusLine(result.Name, kind, result.Detail, colorize))
				}
				fmt.Fprintln(stdout)
			}

			for _, line := range renderSectionHeader("Queue Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := buildQueueStatusRows(snapshot.Status.Workflow.QueueStats)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "Queue is empty")
				return nil
			}
			table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
			fmt.Fprint(stdout, table)
			fmt.Fprintln(stdout)
			return nil
		},
	}

	cmd.Flags().BoolVar(&runPreflight, "preflight", false, "Run local readiness and service checks")
	return cmd
}

func daemonLines(snapshot *daemonctl.Snapshot, colorize bool) []string {
	status := snapshot.Status

	lines := make([]string, 0, 5)
	if status.Running {
		detail := "Running"
		if status.PID > 0 {
			detail = fmt.Sprintf("Running (pid %d)", status.PID)
		}
		lines = append(lines, renderStatusLine("Daemon", statusOK, detail, colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusInfo, "Not running", colorize))
	}

	if snapshot.Reachable {
		lines = append(lines, renderStatusLine("API", statusOK, "Reachable", colorize))
	} else {
		lines = append(lines, renderStatusLine("API", statusInfo, "Offline (reading queue database directly)", colorize))
	}

	if status.Workflow.Running {
		lines = append(lines, renderStatusLine("Workflow", statusOK, "Processing", colorize))
	}
	if lastError := strings.TrimSpace(status.Workflow.LastError); lastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusWarn, lastError, colorize))
	}
	if status.QueueDBPath != "" {
		lines = append(lines, renderStatusLine("Queue DB", statusInfo, status.QueueDBPath, colorize))
	}
	return lines
}

func dependencyLines(deps []api.DependencyStatus, summary daemonctl.DependencySummary, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	lines = append(lines, renderStatusLine("Summary", statusKindFromSeverity(summary.Severity), summary.Detail, colorize))
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if strings.TrimSpace(dep.Detail) != "" {
				message = dep.Detail
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		lines = append(lines, renderStatusLine(dep.Name, statusWarn, detail, colorize))
	}
	return lines
}
