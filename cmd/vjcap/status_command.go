package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"vjcap/internal/daemon"
	"vjcap/internal/prefetch"
	"vjcap/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status daemon.Status
			statusErr := ctx.fetchJSON("/api/status", &status)

			var checks []preflight.Result
			if full {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				checkCtx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				defer cancel()
				checks = preflight.RunAll(checkCtx, cfg)
			}

			if ctx.jsonOutput() {
				payload := map[string]any{"daemon": status}
				if statusErr != nil {
					payload["daemon"] = nil
					payload["error"] = statusErr.Error()
				}
				if full {
					payload["preflight"] = checks
				}
				return writeJSON(cmd, payload)
			}

			p := newStatusPrinter(cmd.OutOrStdout())
			p.section("Daemon")
			if statusErr != nil {
				p.line("Daemon", statusError, "%s", statusErr.Error())
			} else {
				renderDaemonStatus(p, status)
			}

			if full {
				p.blank()
				p.section("Preflight")
				for _, check := range checks {
					kind := statusOK
					if !check.Passed {
						kind = statusError
					}
					p.line(check.Name, kind, "%s", check.Detail)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Include local preflight checks")
	return cmd
}

func renderDaemonStatus(p *statusPrinter, status daemon.Status) {
	if status.Running {
		p.line("Daemon", statusOK, "up %s", (time.Duration(status.UptimeSeconds) * time.Second).String())
	} else {
		p.line("Daemon", statusError, "stopped")
	}
	p.line("Passes", statusInfo, "%d", status.Passes)

	budgetKind := statusOK
	if status.BudgetRemaining == 0 {
		budgetKind = statusWarn
	}
	p.line("Budget", budgetKind, "%d/%d (resets %s)",
		status.BudgetRemaining, status.BudgetCap,
		status.BudgetResetAt.Local().Format(time.Kitchen))

	if status.ActiveDeck != "" {
		p.line("Active deck", statusInfo, "%s", status.ActiveDeck)
	}
	if len(status.Prefetch) > 0 {
		p.line("Prefetch", statusInfo, "%d pending, %d working, %d ready, %d error",
			status.Prefetch[prefetch.StatusPending],
			status.Prefetch[prefetch.StatusWorking],
			status.Prefetch[prefetch.StatusReady],
			status.Prefetch[prefetch.StatusError])
	}
	p.line("Snapshot", statusInfo, "%s", status.SnapshotPath)
	p.line("Output", statusInfo, "%s", status.OutputPath)
}
