package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/outlay-dev/outlay/internal/apperr"
	"github.com/outlay-dev/outlay/internal/id"
	"github.com/outlay-dev/outlay/internal/model"
	"github.com/outlay-dev/outlay/internal/store"
)

const dateFormat = "2006-01-02"

func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, apperr.Validation(field, "invalid amount %q", s)
	}
	return d, nil
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return time.Time{}, apperr.Validation(field, "invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

func parseTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func argID(args []string) (uint, error) {
	n, err := id.Parse(args[0])
	if err != nil {
		return 0, apperr.Validation("id", "%v", err)
	}
	return n, nil
}

// changed reports whether the user set the named flag.
func changed(cmd *cobra.Command, name string) bool {
	return cmd.Flags().Changed(name)
}

func printAccount(w io.Writer, a model.Account) {
	status := "active"
	if !a.Active {
		status = "inactive"
	}
	fmt.Fprintf(w, "%4d  %-20s %-12s %12s  %s\n", a.ID, a.Name, a.Type, a.Balance.StringFixed(2), status)
}

func printExpense(w io.Writer, e model.Expense) {
	claim := ""
	if e.ClaimID != nil {
		claim = fmt.Sprintf(" claim=%d", *e.ClaimID)
	} else if e.Reimbursable {
		claim = " reimbursable"
	}
	fmt.Fprintf(w, "%4d  %s  %-7s %10s  acct=%d  %-14s %s%s\n",
		e.ID, e.Date.Format(dateFormat), e.Type, e.Amount.StringFixed(2), e.AccountID, e.Category, e.Description, claim)
}

func printClaim(w io.Writer, c model.Claim) {
	fmt.Fprintf(w, "%4d  %s  %-8s %10s  %s  %s\n",
		c.ID, id.FormatClaimRef(c.SubmitDate, c.ID), c.Status, c.TotalAmount.StringFixed(2), c.SubmitDate.Format(dateFormat), c.Title)
}

func printPage(w io.Writer, page, perPage int, total int64) {
	p := store.NewPagination(page, perPage, total)
	fmt.Fprintf(w, "page %d/%d, %d total\n", p.Page, max(p.Pages, 1), p.Total)
}
