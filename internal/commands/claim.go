package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/outlay-dev/outlay/internal/apperr"
	"github.com/outlay-dev/outlay/internal/claims"
	"github.com/outlay-dev/outlay/internal/id"
	"github.com/outlay-dev/outlay/internal/model"
)

func newClaimCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Bundle reimbursable expenses into claims",
	}
	cmd.AddCommand(
		newClaimCreateCommand(a),
		newClaimListCommand(a),
		newClaimShowCommand(a),
		newClaimUpdateCommand(a),
		newClaimDeleteCommand(a),
		newClaimApproveCommand(a),
		newClaimPayCommand(a),
		newClaimAvailableCommand(a),
		newClaimStatusesCommand(a),
	)
	return cmd
}

// claimArg accepts a bare id or a CLM-YYYY-MM-NNNN reference.
func claimArg(args []string) (uint, error) {
	n, err := id.ParseClaimRef(args[0])
	if err != nil {
		return 0, apperr.Validation("claim", "%v", err)
	}
	return n, nil
}

func parseIDList(s string) ([]uint, error) {
	ids, err := id.ParseList(s)
	if err != nil {
		return nil, apperr.Validation("expenses", "%v", err)
	}
	return ids, nil
}

func newClaimCreateCommand(a *app) *cobra.Command {
	var title, desc, records, date string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Claim a set of reimbursable, unclaimed records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDList(records)
			if err != nil {
				return err
			}
			submit, err := parseDate("date", date)
			if err != nil {
				return err
			}
			c, err := a.claims.Create(cmd.Context(), a.user, claims.CreateParams{
				Title:       title,
				Description: desc,
				ExpenseIDs:  ids,
				SubmitDate:  submit,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created claim %s (id %d), total %s\n",
				id.FormatClaimRef(c.SubmitDate, c.ID), c.ID, c.TotalAmount.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "claim title (required)")
	_ = cmd.MarkFlagRequired("title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&records, "expenses", "", "comma-separated record ids (required)")
	_ = cmd.MarkFlagRequired("expenses")
	cmd.Flags().StringVar(&date, "date", "", "submit date YYYY-MM-DD (default today)")

	return cmd
}

func newClaimListCommand(a *app) *cobra.Command {
	var status, from, to, search string
	var page, perPage int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List claims, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := claims.Filter{Status: model.ClaimStatus(status), Search: search, Page: page, PerPage: a.perPage(perPage)}
			var err error
			if f.From, err = parseDate("from", from); err != nil {
				return err
			}
			if f.To, err = parseDate("to", to); err != nil {
				return err
			}
			list, total, err := a.claims.List(cmd.Context(), a.user, f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range list {
				printClaim(out, c)
			}
			printPage(out, page, f.PerPage, total)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only this status")
	cmd.Flags().StringVar(&from, "from", "", "first submit date YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last submit date YYYY-MM-DD")
	cmd.Flags().StringVar(&search, "search", "", "text in title or description")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&perPage, "per-page", 0, "page size (default from config)")

	return cmd
}

func newClaimShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|ref>",
		Short: "Show a claim and its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claimID, err := claimArg(args)
			if err != nil {
				return err
			}
			c, err := a.claims.Get(cmd.Context(), a.user, claimID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printClaim(out, c)
			if c.Description != "" {
				fmt.Fprintf(out, "      %s\n", c.Description)
			}
			if c.ApproveDate != nil {
				fmt.Fprintf(out, "      reviewed %s: %s\n", c.ApproveDate.Format(dateFormat), c.ApproverNotes)
			}
			for _, rec := range c.Expenses {
				printExpense(out, rec)
			}
			return nil
		},
	}
}

func newClaimUpdateCommand(a *app) *cobra.Command {
	var title, desc, records, date string

	cmd := &cobra.Command{
		Use:   "update <id|ref>",
		Short: "Edit a pending claim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claimID, err := claimArg(args)
			if err != nil {
				return err
			}
			var p claims.Patch
			if changed(cmd, "title") {
				p.Title = &title
			}
			if changed(cmd, "description") {
				p.Description = &desc
			}
			if changed(cmd, "date") {
				d, err := parseDate("date", date)
				if err != nil {
					return err
				}
				p.SubmitDate = &d
			}
			if changed(cmd, "expenses") {
				ids, err := parseIDList(records)
				if err != nil {
					return err
				}
				p.ExpenseIDs = &ids
			}
			c, err := a.claims.Update(cmd.Context(), a.user, claimID, p)
			if err != nil {
				return err
			}
			printClaim(cmd.OutOrStdout(), c)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&desc, "description", "", "new description")
	cmd.Flags().StringVar(&records, "expenses", "", "replacement comma-separated record ids")
	cmd.Flags().StringVar(&date, "date", "", "new submit date YYYY-MM-DD")

	return cmd
}

func newClaimDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|ref>",
		Short: "Delete a pending claim and release its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claimID, err := claimArg(args)
			if err != nil {
				return err
			}
			if err := a.claims.Delete(cmd.Context(), a.user, claimID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted claim %d\n", claimID)
			return nil
		},
	}
}

func newClaimApproveCommand(a *app) *cobra.Command {
	var reject bool
	var notes string

	cmd := &cobra.Command{
		Use:   "approve <id|ref>",
		Short: "Approve (or with --reject, reject) a pending claim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claimID, err := claimArg(args)
			if err != nil {
				return err
			}
			action := claims.ActionApprove
			if reject {
				action = claims.ActionReject
			}
			c, err := a.claims.Approve(cmd.Context(), a.user, claimID, action, notes)
			if err != nil {
				return err
			}
			printClaim(cmd.OutOrStdout(), c)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reject, "reject", false, "reject instead of approve")
	cmd.Flags().StringVar(&notes, "notes", "", "reviewer notes")

	return cmd
}

func newClaimPayCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pay <id|ref>",
		Short: "Mark an approved claim as paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claimID, err := claimArg(args)
			if err != nil {
				return err
			}
			c, err := a.claims.Pay(cmd.Context(), a.user, claimID)
			if err != nil {
				return err
			}
			printClaim(cmd.OutOrStdout(), c)
			return nil
		},
	}
}

func newClaimAvailableCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "available",
		Short: "List records that can still be claimed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := a.claims.Available(cmd.Context(), a.user)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, rec := range recs {
				printExpense(out, rec)
			}
			fmt.Fprintf(out, "%d available\n", len(recs))
			return nil
		},
	}
}

func newClaimStatusesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "statuses",
		Short: "List claim statuses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range a.claims.StatusOptions() {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
}
