package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/outlay-dev/outlay/internal/ledger"
	"github.com/outlay-dev/outlay/internal/model"
)

func newAccountCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}
	cmd.AddCommand(
		newAccountCreateCommand(a),
		newAccountListCommand(a),
		newAccountShowCommand(a),
		newAccountUpdateCommand(a),
		newAccountDeleteCommand(a),
		newAccountVerifyCommand(a),
		newAccountTypesCommand(a),
	)
	return cmd
}

func newAccountCreateCommand(a *app) *cobra.Command {
	var name, typ, desc, opening string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := ledger.CreateParams{Name: name, Type: model.AccountType(typ), Description: desc}
			if opening != "" {
				amt, err := parseAmount("opening_balance", opening)
				if err != nil {
					return err
				}
				params.OpeningBalance = amt
			}
			acct, err := a.ledger.Create(cmd.Context(), a.user, params)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created account %d (%s), balance %s\n", acct.ID, acct.Name, acct.Balance.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "account name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&typ, "type", string(model.AccountTypeCash), "account type")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&opening, "opening", "", "opening balance, may be negative")

	return cmd
}

func newAccountListCommand(a *app) *cobra.Command {
	var typ string
	var activeOnly, inactiveOnly bool
	var page, perPage int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := ledger.ListFilter{Type: model.AccountType(typ), Page: page, PerPage: a.perPage(perPage)}
			switch {
			case activeOnly:
				v := true
				f.Active = &v
			case inactiveOnly:
				v := false
				f.Active = &v
			}
			accts, total, err := a.ledger.List(cmd.Context(), a.user, f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, acct := range accts {
				printAccount(out, acct)
			}
			printPage(out, page, f.PerPage, total)
			return nil
		},
	}

	cmd.Flags().StringVar(&typ, "type", "", "only this account type")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active accounts")
	cmd.Flags().BoolVar(&inactiveOnly, "inactive", false, "only inactive accounts")
	cmd.MarkFlagsMutuallyExclusive("active", "inactive")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&perPage, "per-page", 0, "page size (default from config)")

	return cmd
}

func newAccountShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := argID(args)
			if err != nil {
				return err
			}
			acct, err := a.ledger.Get(cmd.Context(), a.user, accountID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printAccount(out, acct)
			if acct.Description != "" {
				fmt.Fprintf(out, "      %s\n", acct.Description)
			}
			return nil
		},
	}
}

func newAccountUpdateCommand(a *app) *cobra.Command {
	var name, typ, desc string
	var active bool

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename, retype, describe or (de)activate an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := argID(args)
			if err != nil {
				return err
			}
			var p ledger.Patch
			if changed(cmd, "name") {
				p.Name = &name
			}
			if changed(cmd, "type") {
				t := model.AccountType(typ)
				p.Type = &t
			}
			if changed(cmd, "description") {
				p.Description = &desc
			}
			if changed(cmd, "active") {
				p.Active = &active
			}
			acct, err := a.ledger.Update(cmd.Context(), a.user, accountID, p)
			if err != nil {
				return err
			}
			printAccount(cmd.OutOrStdout(), acct)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&typ, "type", "", "new type")
	cmd.Flags().StringVar(&desc, "description", "", "new description")
	cmd.Flags().BoolVar(&active, "active", true, "active flag")

	return cmd
}

func newAccountDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an account that has no records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := argID(args)
			if err != nil {
				return err
			}
			if err := a.ledger.Delete(cmd.Context(), a.user, accountID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted account %d\n", accountID)
			return nil
		},
	}
}

func newAccountVerifyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Recompute balances from records and report mismatches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bad, err := a.ledger.Verify(cmd.Context(), a.user)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(bad) == 0 {
				fmt.Fprintln(out, "All balances match their records.")
				return nil
			}
			for _, d := range bad {
				fmt.Fprintln(out, d.Error())
			}
			return fmt.Errorf("%d account(s) out of balance", len(bad))
		},
	}
}

func newAccountTypesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List account types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, t := range a.ledger.Types() {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
}
