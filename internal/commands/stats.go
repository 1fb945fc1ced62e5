package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/outlay-dev/outlay/internal/model"
	"github.com/outlay-dev/outlay/internal/stats"
)

func newStatsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summaries of the ledger",
	}
	cmd.AddCommand(
		newStatsOverviewCommand(a),
		newStatsCategoriesCommand(a),
		newStatsTrendCommand(a),
		newStatsAccountsCommand(a),
		newStatsMonthCommand(a),
	)
	return cmd
}

func newStatsOverviewCommand(a *app) *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Income, expense and claim totals for a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ov, err := a.stats.Overview(cmd.Context(), a.user, stats.Period(period))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Period:   %s\n", ov.Period)
			fmt.Fprintf(out, "Income:   %s\n", ov.TotalIncome.StringFixed(2))
			fmt.Fprintf(out, "Expense:  %s\n", ov.TotalExpense.StringFixed(2))
			fmt.Fprintf(out, "Net:      %s\n", ov.Net.StringFixed(2))
			fmt.Fprintf(out, "Balance:  %s\n", ov.TotalBalance.StringFixed(2))
			fmt.Fprintf(out, "Records:  %d\n", ov.RecordCount)
			for _, s := range model.ClaimStatuses {
				c := ov.Claims[s]
				fmt.Fprintf(out, "Claims %-9s %3d  %s\n", s+":", c.Count, c.Amount.StringFixed(2))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&period, "period", string(stats.PeriodMonth), "month, year or all")

	return cmd
}

func newStatsCategoriesCommand(a *app) *cobra.Command {
	var typ, from, to string

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Totals per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := stats.CategoryFilter{Type: model.EntryType(typ)}
			var err error
			if f.From, err = parseDate("from", from); err != nil {
				return err
			}
			if f.To, err = parseDate("to", to); err != nil {
				return err
			}
			rows, err := a.stats.Categories(cmd.Context(), a.user, f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range rows {
				fmt.Fprintf(out, "%-20s %12s %4d %6.2f%%\n", r.Category, r.Amount.StringFixed(2), r.Count, r.Percent)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&typ, "type", string(model.EntryTypeExpense), "expense or income")
	cmd.Flags().StringVar(&from, "from", "", "first date YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date YYYY-MM-DD")

	return cmd
}

func newStatsTrendCommand(a *app) *cobra.Command {
	var granularity, from, to string

	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Income and expense per day, month or year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseDate("from", from)
			if err != nil {
				return err
			}
			end, err := parseDate("to", to)
			if err != nil {
				return err
			}
			points, err := a.stats.Trend(cmd.Context(), a.user, stats.Granularity(granularity), start, end)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range points {
				printTrendPoint(out, p)
			}
			if len(points) == 0 {
				fmt.Fprintln(out, "No activity")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&granularity, "granularity", string(stats.GranularityMonth), "day, month or year")
	cmd.Flags().StringVar(&from, "from", "", "first date YYYY-MM-DD (default 12 months before --to)")
	cmd.Flags().StringVar(&to, "to", "", "last date YYYY-MM-DD (default today)")

	return cmd
}

func newStatsAccountsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "Balance share of each active account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, total, err := a.stats.Accounts(cmd.Context(), a.user)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range rows {
				fmt.Fprintf(out, "%4d  %-20s %-12s %12s %5d %7.2f%%\n", r.ID, r.Name, r.Type, r.Balance.StringFixed(2), r.Records, r.Percent)
			}
			fmt.Fprintf(out, "Total: %s\n", total.StringFixed(2))
			return nil
		},
	}
}

func newStatsMonthCommand(a *app) *cobra.Command {
	var year, month int

	cmd := &cobra.Command{
		Use:   "month",
		Short: "Summary of one calendar month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := a.stats.Month(cmd.Context(), a.user, year, time.Month(month))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Month:    %d-%02d\n", sum.Year, int(sum.Month))
			fmt.Fprintf(out, "Income:   %s\n", sum.Income.StringFixed(2))
			fmt.Fprintf(out, "Expense:  %s\n", sum.Expense.StringFixed(2))
			fmt.Fprintf(out, "Net:      %s\n", sum.Net.StringFixed(2))
			for _, c := range sum.Categories {
				fmt.Fprintf(out, "  %-20s %12s %4d %6.2f%%\n", c.Category, c.Amount.StringFixed(2), c.Count, c.Percent)
			}
			for _, d := range sum.Days {
				printTrendPoint(out, d)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "year (default current)")
	cmd.Flags().IntVar(&month, "month", 0, "month 1-12 (default current)")

	return cmd
}

func printTrendPoint(w io.Writer, p stats.TrendPoint) {
	fmt.Fprintf(w, "%-10s  in %12s  out %12s  net %12s\n",
		p.Period, p.Income.StringFixed(2), p.Expense.StringFixed(2), p.Net.StringFixed(2))
}
