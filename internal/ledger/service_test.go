package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outlay-dev/outlay/internal/apperr"
	"github.com/outlay-dev/outlay/internal/expenses"
	"github.com/outlay-dev/outlay/internal/ledger"
	"github.com/outlay-dev/outlay/internal/logging"
	"github.com/outlay-dev/outlay/internal/model"
	"github.com/outlay-dev/outlay/internal/store"
	"github.com/outlay-dev/outlay/internal/store/storetest"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setup(t *testing.T) (*ledger.Service, *expenses.Engine, *store.Store) {
	t.Helper()
	st := storetest.Open(t)
	eng := expenses.NewEngine(st, func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }, logging.Nop())
	return ledger.NewService(st, eng, logging.Nop()), eng, st
}

func TestCreateAccount(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	acct, err := svc.Create(ctx, 1, ledger.CreateParams{Name: "  Wallet ", Type: model.AccountTypeCash})
	require.NoError(t, err)
	assert.NotZero(t, acct.ID)
	assert.Equal(t, "Wallet", acct.Name)
	assert.True(t, acct.Balance.IsZero())
	assert.True(t, acct.Active)

	got, err := svc.Get(ctx, 1, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, acct.Name, got.Name)
}

func TestCreateAccountValidation(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, ledger.CreateParams{Name: "", Type: model.AccountTypeCash})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Create(ctx, 1, ledger.CreateParams{Name: "X", Type: "piggy_bank"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Create(ctx, 1, ledger.CreateParams{Name: "X", Type: model.AccountTypeBank, OpeningBalance: dec("10.005")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Get(ctx, 1, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "a rejected opening balance creates no account")

	acct, err := svc.Create(ctx, 1, ledger.CreateParams{Name: "X", Type: model.AccountTypeBank, OpeningBalance: dec("-10.50")})
	require.NoError(t, err)
	assert.Equal(t, "-10.50", acct.Balance.StringFixed(2))
}

func TestCreateAccountDuplicateName(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, ledger.CreateParams{Name: "Wallet", Type: model.AccountTypeCash})
	require.NoError(t, err)

	_, err = svc.Create(ctx, 1, ledger.CreateParams{Name: "Wallet", Type: model.AccountTypeBank})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.Create(ctx, 2, ledger.CreateParams{Name: "Wallet", Type: model.AccountTypeBank})
	assert.NoError(t, err)
}

func TestOpeningBalanceIsBookedAsRecord(t *testing.T) {
	tests := []struct {
		opening string
		typ     model.EntryType
	}{
		{"250.75", model.EntryTypeIncome},
		{"-80", model.EntryTypeExpense},
	}
	for _, tt := range tests {
		t.Run(tt.opening, func(t *testing.T) {
			svc, eng, _ := setup(t)
			ctx := context.Background()

			acct, err := svc.Create(ctx, 1, ledger.CreateParams{Name: "Main", Type: model.AccountTypeBank, OpeningBalance: dec(tt.opening)})
			require.NoError(t, err)
			assert.True(t, acct.Balance.Equal(dec(tt.opening)))

			recs, total, err := eng.List(ctx, 1, expenses.Filter{AccountID: acct.ID})
			require.NoError(t, err)
			require.EqualValues(t, 1, total)
			assert.Equal(t, tt.typ, recs[0].Type)
			assert.Equal(t, expenses.OpeningCategory, recs[0].Category)

			bad, err := svc.Verify(ctx, 1)
			require.NoError(t, err)
			assert.Empty(t, bad)
		})
	}
}

func TestOpeningBalanceWithoutRecorder(t *testing.T) {
	st := storetest.Open(t)
	svc := ledger.NewService(st, nil, logging.Nop())

	_, err := svc.Create(context.Background(), 1, ledger.CreateParams{Name: "Main", Type: model.AccountTypeBank, OpeningBalance: dec("1")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestListAccounts(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		_, err := svc.Create(ctx, 1, ledger.CreateParams{Name: name, Type: model.AccountTypeBank})
		require.NoError(t, err)
	}
	cash, err := svc.Create(ctx, 1, ledger.CreateParams{Name: "Cash", Type: model.AccountTypeCash})
	require.NoError(t, err)
	inactive := false
	_, err = svc.Update(ctx, 1, cash.ID, ledger.Patch{Active: &inactive})
	require.NoError(t, err)

	all, total, err := svc.List(ctx, 1, ledger.ListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Equal(t, "Cash", all[0].Name, "newest first")

	banks, total, err := svc.List(ctx, 1, ledger.ListFilter{Type: model.AccountTypeBank, Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, banks, 1)
	assert.Equal(t, "A", banks[0].Name)

	active := true
	_, total, err = svc.List(ctx, 1, ledger.ListFilter{Active: &active})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	_, total, err = svc.List(ctx, 2, ledger.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestUpdateAccount(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, 1, ledger.CreateParams{Name: "A", Type: model.AccountTypeBank, OpeningBalance: dec("10")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, ledger.CreateParams{Name: "B", Type: model.AccountTypeBank})
	require.NoError(t, err)

	name, typ, desc := "Savings", model.AccountTypeOther, "rainy day"
	got, err := svc.Update(ctx, 1, a.ID, ledger.Patch{Name: &name, Type: &typ, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Savings", got.Name)
	assert.Equal(t, model.AccountTypeOther, got.Type)
	assert.True(t, got.Balance.Equal(dec("10")), "update never touches the balance")

	dup := "B"
	_, err = svc.Update(ctx, 1, a.ID, ledger.Patch{Name: &dup})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	same := "Savings"
	_, err = svc.Update(ctx, 1, a.ID, ledger.Patch{Name: &same})
	assert.NoError(t, err, "renaming to its own name is not a conflict")

	_, err = svc.Update(ctx, 2, a.ID, ledger.Patch{Name: &name})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteAccount(t *testing.T) {
	svc, eng, _ := setup(t)
	ctx := context.Background()

	empty, err := svc.Create(ctx, 1, ledger.CreateParams{Name: "Empty", Type: model.AccountTypeCash})
	require.NoError(t, err)
	used, err := svc.Create(ctx, 1, ledger.CreateParams{Name: "Used", Type: model.AccountTypeCash})
	require.NoError(t, err)
	_, err = eng.Create(ctx, 1, expenses.CreateParams{AccountID: used.ID, Amount: dec("3"), Category: "food"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, 1, empty.ID))
	_, err = svc.Get(ctx, 1, empty.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, 1, used.ID), apperr.ErrConflict)
	assert.ErrorIs(t, svc.Delete(ctx, 1, 999), apperr.ErrNotFound)
}

func TestVerifyReportsDrift(t *testing.T) {
	svc, eng, st := setup(t)
	ctx := context.Background()

	acct, err := svc.Create(ctx, 1, ledger.CreateParams{Name: "Main", Type: model.AccountTypeBank, OpeningBalance: dec("100")})
	require.NoError(t, err)
	_, err = eng.Create(ctx, 1, expenses.CreateParams{AccountID: acct.ID, Amount: dec("40"), Category: "food"})
	require.NoError(t, err)

	bad, err := svc.Verify(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, bad)

	// Corrupt the stored balance behind the engine's back.
	require.NoError(t, st.DB(ctx).Model(&model.Account{}).Where("id = ?", acct.ID).Update("balance", dec("1")).Error)

	bad, err = svc.Verify(ctx, 1)
	require.NoError(t, err)
	require.Len(t, bad, 1)
	assert.Equal(t, acct.ID, bad[0].AccountID)
	assert.True(t, bad[0].Computed.Equal(dec("60")))
	assert.Contains(t, bad[0].Error(), "stored balance 1.00 != computed 60.00")
}

func TestApplyDeltaUnknownAccount(t *testing.T) {
	_, _, st := setup(t)
	err := ledger.ApplyDelta(st.DB(context.Background()), 42, dec("1"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTypes(t *testing.T) {
	svc, _, _ := setup(t)
	assert.Contains(t, svc.Types(), model.AccountTypeCreditCard)
	assert.Len(t, svc.Types(), 6)
}
