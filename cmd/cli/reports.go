package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"haf/storage"
)

func reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Archived run reports",
		Long:  "List and inspect reports kept by runs with the archive enabled",
	}

	cmd.AddCommand(reportsListCmd())
	cmd.AddCommand(reportsShowCmd())

	return cmd
}

func reportsListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := openArchive()
			if err != nil {
				return err
			}
			defer archive.Close()

			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
			defer cancel()

			reports, err := archive.ListReports(ctx, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(reports) == 0 {
				fmt.Fprintln(out, "(empty list)")
				return nil
			}
			for i, r := range reports {
				fmt.Fprintf(out, "%d) %s - %s - %d heartbeats - %d assignments\n",
					i+1, r.RunID, r.FinishedAt.Format(time.RFC3339), r.TotalHeartbeats, r.AssignmentsDone)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list, 0 for all")

	return cmd
}

func reportsShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print an archived report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := openArchive()
			if err != nil {
				return err
			}
			defer archive.Close()

			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
			defer cancel()

			report, err := archive.GetReport(ctx, args[0])
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("run %s not found", args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return report.Write(out)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")

	return cmd
}
