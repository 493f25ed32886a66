package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func assignmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assignments <run-id>",
		Short: "List the assignments made during an archived run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := openArchive()
			if err != nil {
				return err
			}
			defer archive.Close()

			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
			defer cancel()

			records, err := archive.Assignments(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "(empty list)")
				return nil
			}
			for _, rec := range records {
				fmt.Fprintf(out, "%d) %s - %s\n",
					rec.Seq, rec.At.Format(time.RFC3339Nano), strings.Join(rec.Targets, ", "))
			}
			return nil
		},
	}
}
