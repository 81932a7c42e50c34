package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"vjcap/internal/prefetch"
)

func newPrefetchCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefetch",
		Short: "Inspect the clip warm queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listPrefetchJobs(cmd, ctx)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List warm jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listPrefetchJobs(cmd, ctx)
		},
	})
	return cmd
}

func listPrefetchJobs(cmd *cobra.Command, ctx *commandContext) error {
	var view struct {
		Jobs []prefetch.Job `json:"jobs"`
	}
	if err := ctx.fetchJSON("/api/prefetch", &view); err != nil {
		return err
	}

	if ctx.jsonOutput() {
		return writeJSON(cmd, view)
	}

	if len(view.Jobs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Warm queue is empty")
		return nil
	}

	rows := make([][]string, 0, len(view.Jobs))
	for _, job := range view.Jobs {
		detail := job.ClipDir
		if job.Status == prefetch.StatusError {
			detail = job.LastError
		}
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			job.Signature.Artist,
			job.Signature.Title,
			string(job.Status),
			strconv.Itoa(job.ClipCount),
			strconv.Itoa(job.Attempts),
			job.UpdatedAt.Local().Format(time.Stamp),
			detail,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"ID", "Artist", "Title", "Status", "Clips", "Attempts", "Updated", "Detail"},
		rows, 0, 4, 5))
	return nil
}
