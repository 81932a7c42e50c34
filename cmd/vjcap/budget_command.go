package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

type budgetView struct {
	Remaining int       `json:"remaining"`
	Cap       int       `json:"cap"`
	ResetAt   time.Time `json:"reset_at"`
}

func newBudgetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "budget",
		Short: "Show the provider request budget window",
		RunE: func(cmd *cobra.Command, args []string) error {
			var view budgetView
			if err := ctx.fetchJSON("/api/budget", &view); err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, view)
			}

			rows := [][]string{{
				strconv.Itoa(view.Remaining),
				strconv.Itoa(view.Cap),
				view.ResetAt.Local().Format(time.RFC1123),
			}}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Remaining", "Cap", "Window Resets"},
				rows, 0, 1))
			return nil
		},
	}
}
