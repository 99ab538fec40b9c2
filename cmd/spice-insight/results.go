package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-insight/internal/cli"
	"github.com/Veraticus/spice-insight/internal/service"
)

func resultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Browse stored analysis results",
	}

	cmd.AddCommand(resultsListCmd())
	cmd.AddCommand(resultsShowCmd())
	cmd.AddCommand(resultsDeleteCmd())

	return cmd
}

func resultsListCmd() *cobra.Command {
	var (
		limit int
		since string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := service.ResultFilter{Limit: limit}
			if since != "" {
				t, err := time.Parse(time.DateOnly, since)
				if err != nil {
					return fmt.Errorf("invalid since date format (use YYYY-MM-DD): %w", err)
				}
				filter.Since = &t
			}

			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			summaries, err := store.ListResults(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				_, err := fmt.Fprintln(out, cli.FormatInfo("No stored results"))
				return err
			}

			_, _ = fmt.Fprintln(out, cli.TableHeaderStyle.Render(
				fmt.Sprintf("%-36s  %-20s  %-10s  %7s  %5s  %8s", "SESSION", "STARTED", "PHASE", "QUALITY", "TXNS", "INSIGHTS")))
			for _, s := range summaries {
				line := fmt.Sprintf("%-36s  %-20s  %-10s  %6.1f%%  %5d  %8d",
					s.SessionID,
					s.StartedAt.Local().Format("2006-01-02 15:04:05"),
					s.Phase,
					s.QualityScore*100,
					s.Transactions,
					s.Insights)
				if s.Degraded {
					line = cli.FormatDegraded(line)
				}
				_, _ = fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list (0 for all)")
	cmd.Flags().StringVar(&since, "since", "", "only runs started on or after this date (YYYY-MM-DD)")

	return cmd
}

func resultsShowCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}

			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			result, err := store.GetResult(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), output, result)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputSummary, "output format (summary, json, yaml)")

	return cmd
}

func resultsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteResult(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted "+args[0]))
			return err
		},
	}
}
