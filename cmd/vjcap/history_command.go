package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [artist]",
		Short: "Show the shown-media dedup history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return showArtistHistory(cmd, ctx, args[0])
			}
			return showHistoryArtists(cmd, ctx)
		},
	}
	return cmd
}

func showHistoryArtists(cmd *cobra.Command, ctx *commandContext) error {
	var view struct {
		Artists []string `json:"artists"`
	}
	if err := ctx.fetchJSON("/api/history", &view); err != nil {
		return err
	}

	if ctx.jsonOutput() {
		return writeJSON(cmd, view)
	}

	if len(view.Artists) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No dedup history recorded yet")
		return nil
	}
	rows := make([][]string, 0, len(view.Artists))
	for _, artist := range view.Artists {
		rows = append(rows, []string{artist})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Artist"}, rows))
	return nil
}

func showArtistHistory(cmd *cobra.Command, ctx *commandContext, artist string) error {
	var view struct {
		Artist string   `json:"artist"`
		Seen   []string `json:"seen"`
	}
	err := ctx.fetchJSON("/api/history/"+artist, &view)
	if errors.Is(err, errNotFound) {
		return fmt.Errorf("no history recorded for %q", artist)
	}
	if err != nil {
		return err
	}

	if ctx.jsonOutput() {
		return writeJSON(cmd, view)
	}

	rows := make([][]string, 0, len(view.Seen))
	for i, id := range view.Seen {
		rows = append(rows, []string{strconv.Itoa(i + 1), id})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"#", "Media ID"},
		rows, 0))
	return nil
}
