package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"moneyviz/internal/cli"
	"moneyviz/internal/core"
)

var summaryStart, summaryEnd string

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the total amount per category",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		start, end, err := parseRange(summaryStart, summaryEnd)
		if err != nil {
			return err
		}

		repo := cli.InitSQLite(logger, dbPath)
		defer repo.Close()

		totals, err := repo.CategoryTotals(cmd.Context(), start, end)
		if err != nil {
			return err
		}
		return writeSummary(cmd.OutOrStdout(), totals)
	},
}

func init() {
	summaryCmd.Flags().StringVar(&summaryStart, "start", "", "first day, YYYY-MM-DD")
	summaryCmd.Flags().StringVar(&summaryEnd, "end", "", "last day, YYYY-MM-DD")
}

func parseRange(start, end string) (core.Date, core.Date, error) {
	var s, e core.Date
	var err error
	if start != "" {
		if s, err = core.ParseDate(start); err != nil {
			return s, e, fmt.Errorf("--start: %w", err)
		}
	}
	if end != "" {
		if e, err = core.ParseDate(end); err != nil {
			return s, e, fmt.Errorf("--end: %w", err)
		}
	}
	return s, e, nil
}

// writeSummary prints one row per category and a closing total.
func writeSummary(w io.Writer, totals []core.CategoryAmount) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CATEGORY\tAMOUNT\t")

	sum := decimal.Zero
	for _, t := range totals {
		name := t.Name
		if name == "" {
			name = "(uncategorised)"
		}
		amount := core.FromCents(t.Cents)
		sum = sum.Add(amount)
		fmt.Fprintf(tw, "%s\t%s\t\n", name, amount.StringFixed(2))
	}
	fmt.Fprintf(tw, "TOTAL\t%s\t\n", sum.StringFixed(2))
	return tw.Flush()
}
