package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/familyevents/shipit/internal/formatters"
	"github.com/familyevents/shipit/internal/history"
	"github.com/familyevents/shipit/internal/pipeline"
	"github.com/familyevents/shipit/internal/runtime"
	"github.com/familyevents/shipit/internal/viper"
)

func historyCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past pipeline runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	historyCmd.AddCommand(historyListCmd())
	historyCmd.AddCommand(historyShowCmd())

	return historyCmd
}

func historyListCmd() *cobra.Command {
	var limit int

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := runtime.NewConfigFrom(*viper.Instance())
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			db, err := history.Open(cfg.HistoryDB)
			if err != nil {
				return fmt.Errorf("could not open run history: %w", err)
			}
			defer db.Close()

			runs, err := (&history.RunRepo{DB: db}).List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true
			return printRuns(cmd.OutOrStdout(), runs)
		},
	}

	listCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list. Zero lists all runs.")

	return listCmd
}

func historyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show the report of a single run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := runtime.NewConfigFrom(*viper.Instance())
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			formatter, err := formatters.NewForConfig(cfg.ReadOnly())
			if err != nil {
				return err
			}

			db, err := history.Open(cfg.HistoryDB)
			if err != nil {
				return fmt.Errorf("could not open run history: %w", err)
			}
			defer db.Close()

			run, err := (&history.RunRepo{DB: db}).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			formatted, err := formatter.Format(cmd.Context(), run)
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true
			fmt.Fprintln(cmd.OutOrStdout(), string(formatted))
			return nil
		},
	}
}

func printRuns(out io.Writer, runs []pipeline.Run) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tTARGET\tCOMMIT\tCREATED")
	for _, r := range runs {
		state := string(r.State)
		if r.FailedStep != "" {
			state = fmt.Sprintf("%s (%s)", r.State, r.FailedStep)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, state, r.Target, shortCommit(r.Event.Commit), r.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func shortCommit(c string) string {
	if len(c) > 7 {
		return c[:7]
	}
	return c
}
