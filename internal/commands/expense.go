package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/outlay-dev/outlay/internal/expenses"
	"github.com/outlay-dev/outlay/internal/export"
	"github.com/outlay-dev/outlay/internal/model"
)

func newExpenseCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "expense",
		Aliases: []string{"exp"},
		Short:   "Record and manage expenses and income",
	}
	cmd.AddCommand(
		newExpenseAddCommand(a),
		newExpenseUpdateCommand(a),
		newExpenseDeleteCommand(a),
		newExpenseListCommand(a),
		newExpenseShowCommand(a),
		newExpenseImportCommand(a),
		newExpenseExportCommand(a),
	)
	return cmd
}

// recordFlags are shared by add and update.
type recordFlags struct {
	account      uint
	amount       string
	typ          string
	category     string
	subcategory  string
	description  string
	date         string
	tags         string
	receipt      string
	reimbursable bool
}

func (f *recordFlags) register(cmd *cobra.Command) {
	cmd.Flags().UintVar(&f.account, "account", 0, "account id")
	cmd.Flags().StringVar(&f.amount, "amount", "", "positive amount, at most 2 decimals")
	cmd.Flags().StringVar(&f.typ, "type", string(model.EntryTypeExpense), "expense or income")
	cmd.Flags().StringVar(&f.category, "category", "", "category")
	cmd.Flags().StringVar(&f.subcategory, "subcategory", "", "subcategory")
	cmd.Flags().StringVar(&f.description, "description", "", "description")
	cmd.Flags().StringVar(&f.date, "date", "", "date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&f.tags, "tags", "", "comma-separated tags")
	cmd.Flags().StringVar(&f.receipt, "receipt", "", "receipt URL")
	cmd.Flags().BoolVar(&f.reimbursable, "reimbursable", false, "can be claimed for reimbursement")
}

func newExpenseAddCommand(a *app) *cobra.Command {
	var f recordFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an expense or income",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := parseAmount("amount", f.amount)
			if err != nil {
				return err
			}
			date, err := parseDate("date", f.date)
			if err != nil {
				return err
			}
			rec, err := a.engine.Create(cmd.Context(), a.user, expenses.CreateParams{
				AccountID:    f.account,
				Amount:       amt,
				Type:         model.EntryType(f.typ),
				Category:     f.category,
				Subcategory:  f.subcategory,
				Description:  f.description,
				Date:         date,
				Tags:         parseTags(f.tags),
				ReceiptURL:   f.receipt,
				Reimbursable: f.reimbursable,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s %d: %s on account %d\n", rec.Type, rec.ID, rec.Amount.StringFixed(2), rec.AccountID)
			return nil
		},
	}

	f.register(cmd)
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func newExpenseUpdateCommand(a *app) *cobra.Command {
	var f recordFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a record; balances follow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := argID(args)
			if err != nil {
				return err
			}
			p, err := f.patch(cmd)
			if err != nil {
				return err
			}
			rec, err := a.engine.Update(cmd.Context(), a.user, recordID, p)
			if err != nil {
				return err
			}
			printExpense(cmd.OutOrStdout(), rec)
			return nil
		},
	}

	f.register(cmd)

	return cmd
}

// patch builds an expenses.Patch from the flags the user actually set.
func (f *recordFlags) patch(cmd *cobra.Command) (expenses.Patch, error) {
	var p expenses.Patch
	if changed(cmd, "account") {
		p.AccountID = &f.account
	}
	if changed(cmd, "amount") {
		amt, err := parseAmount("amount", f.amount)
		if err != nil {
			return p, err
		}
		p.Amount = &amt
	}
	if changed(cmd, "type") {
		t := model.EntryType(f.typ)
		p.Type = &t
	}
	if changed(cmd, "category") {
		p.Category = &f.category
	}
	if changed(cmd, "subcategory") {
		p.Subcategory = &f.subcategory
	}
	if changed(cmd, "description") {
		p.Description = &f.description
	}
	if changed(cmd, "date") {
		d, err := parseDate("date", f.date)
		if err != nil {
			return p, err
		}
		p.Date = &d
	}
	if changed(cmd, "tags") {
		tags := parseTags(f.tags)
		p.Tags = &tags
	}
	if changed(cmd, "receipt") {
		p.ReceiptURL = &f.receipt
	}
	if changed(cmd, "reimbursable") {
		p.Reimbursable = &f.reimbursable
	}
	return p, nil
}

func newExpenseDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record and reverse its balance effect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := argID(args)
			if err != nil {
				return err
			}
			if err := a.engine.Delete(cmd.Context(), a.user, recordID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted record %d\n", recordID)
			return nil
		},
	}
}

func newExpenseShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := argID(args)
			if err != nil {
				return err
			}
			rec, err := a.engine.Get(cmd.Context(), a.user, recordID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printExpense(out, rec)
			if rec.Subcategory != "" {
				fmt.Fprintf(out, "      subcategory: %s\n", rec.Subcategory)
			}
			if tags := rec.TagList(); len(tags) > 0 {
				fmt.Fprintf(out, "      tags: %v\n", tags)
			}
			if rec.ReceiptURL != "" {
				fmt.Fprintf(out, "      receipt: %s\n", rec.ReceiptURL)
			}
			return nil
		},
	}
}

// filterFlags are shared by list and export.
type filterFlags struct {
	category string
	typ      string
	account  uint
	from     string
	to       string
	search   string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.category, "category", "", "only this category")
	cmd.Flags().StringVar(&f.typ, "type", "", "only expense or income")
	cmd.Flags().UintVar(&f.account, "account", 0, "only this account")
	cmd.Flags().StringVar(&f.from, "from", "", "first date YYYY-MM-DD")
	cmd.Flags().StringVar(&f.to, "to", "", "last date YYYY-MM-DD")
	cmd.Flags().StringVar(&f.search, "search", "", "text in description, category or subcategory")
}

func (f *filterFlags) filter() (expenses.Filter, error) {
	from, err := parseDate("from", f.from)
	if err != nil {
		return expenses.Filter{}, err
	}
	to, err := parseDate("to", f.to)
	if err != nil {
		return expenses.Filter{}, err
	}
	return expenses.Filter{
		Category:  f.category,
		Type:      model.EntryType(f.typ),
		AccountID: f.account,
		From:      from,
		To:        to,
		Search:    f.search,
	}, nil
}

func newExpenseListCommand(a *app) *cobra.Command {
	var ff filterFlags
	var page, perPage int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ff.filter()
			if err != nil {
				return err
			}
			f.Page, f.PerPage = page, a.perPage(perPage)
			recs, total, err := a.engine.List(cmd.Context(), a.user, f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, rec := range recs {
				printExpense(out, rec)
			}
			printPage(out, page, f.PerPage, total)
			return nil
		},
	}

	ff.register(cmd)
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&perPage, "per-page", 0, "page size (default from config)")

	return cmd
}

func newExpenseExportCommand(a *app) *cobra.Command {
	var ff filterFlags
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write matching records as outlay CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ff.filter()
			if err != nil {
				return err
			}
			recs, _, err := a.engine.List(cmd.Context(), a.user, f)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" {
				file, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("creating %s: %w", outPath, err)
				}
				defer file.Close()
				w = file
			}
			if err := export.WriteRecords(w, recs); err != nil {
				return err
			}
			if outPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", len(recs), outPath)
			}
			return nil
		},
	}

	ff.register(cmd)
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	return cmd
}

func newExpenseImportCommand(a *app) *cobra.Command {
	var account uint
	var format, dir string

	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Import bank CSV files onto an account",
		Long: "Import bank CSV files onto an account. Each file is booked in one transaction.\n" +
			"Without file arguments every CSV in --dir is imported and moved to --dir/processed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				results, err := a.importer.ImportDir(cmd.Context(), a.user, account, format, dir)
				for _, r := range results {
					fmt.Fprintf(out, "%s: imported %d, skipped %d\n", r.File, r.Imported, r.Skipped)
				}
				if err != nil {
					return err
				}
				if len(results) == 0 {
					fmt.Fprintf(out, "No CSV files in %s\n", dir)
				}
				return nil
			}
			for _, path := range args {
				r, err := a.importer.ImportFile(cmd.Context(), a.user, account, format, path)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: imported %d, skipped %d\n", r.File, r.Imported, r.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().UintVar(&account, "account", 0, "account to book the rows on (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVar(&format, "format", "chase", "file format: chase or outlay")
	cmd.Flags().StringVar(&dir, "dir", "import", "inbox directory scanned when no files are given")

	return cmd
}
