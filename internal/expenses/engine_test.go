package expenses_test

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

const owner uint = 1

var today = time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

type env struct {
	ctx     context.Context
	store   *store.Store
	engine  *expenses.Engine
	ledger  *ledger.Service
	checkID uint
	cardID  uint
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := storetest.Open(t)
	eng := expenses.NewEngine(st, func() time.Time { return today }, logging.Nop())
	led := ledger.NewService(st, eng, logging.Nop())
	ctx := context.Background()

	check, err := led.Create(ctx, owner, ledger.CreateParams{Name: "Checking", Type: model.AccountTypeBank, OpeningBalance: dec("100")})
	require.NoError(t, err)
	card, err := led.Create(ctx, owner, ledger.CreateParams{Name: "Card", Type: model.AccountTypeCreditCard})
	require.NoError(t, err)

	return &env{ctx: ctx, store: st, engine: eng, ledger: led, checkID: check.ID, cardID: card.ID}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (e *env) balance(t *testing.T, id uint) decimal.Decimal {
	t.Helper()
	acct, err := e.ledger.Get(e.ctx, owner, id)
	require.NoError(t, err)
	return acct.Balance
}

func (e *env) assertBalance(t *testing.T, id uint, want string) {
	t.Helper()
	got := e.balance(t, id)
	assert.True(t, got.Equal(dec(want)), "balance of account %d: got %s, want %s", id, got, want)
}

func (e *env) assertConsistent(t *testing.T) {
	t.Helper()
	bad, err := e.ledger.Verify(e.ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, bad)
}

func (e *env) add(t *testing.T, p expenses.CreateParams) model.Expense {
	t.Helper()
	if p.AccountID == 0 {
		p.AccountID = e.checkID
	}
	if p.Category == "" {
		p.Category = "food"
	}
	rec, err := e.engine.Create(e.ctx, owner, p)
	require.NoError(t, err)
	return rec
}

func TestCreateAdjustsBalance(t *testing.T) {
	e := newEnv(t)

	e.add(t, expenses.CreateParams{Amount: dec("30")})
	e.assertBalance(t, e.checkID, "70")

	e.add(t, expenses.CreateParams{Amount: dec("20.50"), Type: model.EntryTypeIncome, Category: "salary"})
	e.assertBalance(t, e.checkID, "90.50")
	e.assertConsistent(t)
}

func TestCreateDefaults(t *testing.T) {
	e := newEnv(t)

	rec := e.add(t, expenses.CreateParams{Amount: dec("5"), Tags: []string{" lunch", "", "team "}})
	assert.Equal(t, model.EntryTypeExpense, rec.Type)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), rec.Date)
	assert.Equal(t, []string{"lunch", "team"}, rec.TagList())
	assert.False(t, rec.Claimed())
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		params expenses.CreateParams
		kind   error
	}{
		{"zero amount", expenses.CreateParams{Amount: dec("0"), Category: "food"}, apperr.ErrValidation},
		{"negative amount", expenses.CreateParams{Amount: dec("-3"), Category: "food"}, apperr.ErrValidation},
		{"three decimals", expenses.CreateParams{Amount: dec("1.005"), Category: "food"}, apperr.ErrValidation},
		{"bad type", expenses.CreateParams{Amount: dec("1"), Type: "refund", Category: "food"}, apperr.ErrValidation},
		{"blank category", expenses.CreateParams{Amount: dec("1"), Category: "  "}, apperr.ErrValidation},
		{"unknown account", expenses.CreateParams{Amount: dec("1"), Category: "food", AccountID: 999}, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			if tt.params.AccountID == 0 {
				tt.params.AccountID = e.checkID
			}
			_, err := e.engine.Create(e.ctx, owner, tt.params)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			e.assertBalance(t, e.checkID, "100")
		})
	}
}

func TestCreateOnForeignAccount(t *testing.T) {
	e := newEnv(t)

	_, err := e.engine.Create(e.ctx, 2, expenses.CreateParams{AccountID: e.checkID, Amount: dec("10"), Category: "food"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	e.assertBalance(t, e.checkID, "100")
}

func TestCreateThenDeleteRestoresBalance(t *testing.T) {
	e := newEnv(t)

	rec := e.add(t, expenses.CreateParams{Amount: dec("42.42")})
	e.assertBalance(t, e.checkID, "57.58")

	require.NoError(t, e.engine.Delete(e.ctx, owner, rec.ID))
	e.assertBalance(t, e.checkID, "100")

	_, err := e.engine.Get(e.ctx, owner, rec.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, e.engine.Delete(e.ctx, owner, rec.ID), apperr.ErrNotFound)
}

func TestUpdateCategoryOnlyKeepsBalance(t *testing.T) {
	e := newEnv(t)
	rec := e.add(t, expenses.CreateParams{Amount: dec("12")})

	cat := "transport"
	got, err := e.engine.Update(e.ctx, owner, rec.ID, expenses.Patch{Category: &cat})
	require.NoError(t, err)
	assert.Equal(t, "transport", got.Category)
	e.assertBalance(t, e.checkID, "88")
}

func TestUpdateAmountAppliesDifference(t *testing.T) {
	e := newEnv(t)
	rec := e.add(t, expenses.CreateParams{Amount: dec("50")})
	e.assertBalance(t, e.checkID, "50")

	amt := dec("80")
	_, err := e.engine.Update(e.ctx, owner, rec.ID, expenses.Patch{Amount: &amt})
	require.NoError(t, err)
	e.assertBalance(t, e.checkID, "20")
	e.assertConsistent(t)
}

func TestUpdateTypeFlipsContribution(t *testing.T) {
	e := newEnv(t)
	rec := e.add(t, expenses.CreateParams{Amount: dec("10")})

	typ := model.EntryTypeIncome
	_, err := e.engine.Update(e.ctx, owner, rec.ID, expenses.Patch{Type: &typ})
	require.NoError(t, err)
	e.assertBalance(t, e.checkID, "110")
	e.assertConsistent(t)
}

func TestUpdateMovesBetweenAccounts(t *testing.T) {
	e := newEnv(t)
	rec := e.add(t, expenses.CreateParams{Amount: dec("25")})

	amt := dec("40")
	got, err := e.engine.Update(e.ctx, owner, rec.ID, expenses.Patch{AccountID: &e.cardID, Amount: &amt})
	require.NoError(t, err)
	assert.Equal(t, e.cardID, got.AccountID)

	e.assertBalance(t, e.checkID, "100")
	e.assertBalance(t, e.cardID, "-40")
	e.assertConsistent(t)
}

func TestUpdateToForeignAccountRollsBack(t *testing.T) {
	e := newEnv(t)
	rec := e.add(t, expenses.CreateParams{Amount: dec("25")})

	other, err := e.ledger.Create(e.ctx, 2, ledger.CreateParams{Name: "Theirs", Type: model.AccountTypeCash})
	require.NoError(t, err)

	amt := dec("99")
	_, err = e.engine.Update(e.ctx, owner, rec.ID, expenses.Patch{AccountID: &other.ID, Amount: &amt})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := e.engine.Get(e.ctx, owner, rec.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(dec("25")))
	assert.Equal(t, e.checkID, got.AccountID)
	e.assertBalance(t, e.checkID, "75")
}

func TestUpdateUnknownRecord(t *testing.T) {
	e := newEnv(t)
	cat := "x"
	_, err := e.engine.Update(e.ctx, owner, 404, expenses.Patch{Category: &cat})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestForeignRecordIsInvisible(t *testing.T) {
	e := newEnv(t)
	rec := e.add(t, expenses.CreateParams{Amount: dec("1")})

	_, err := e.engine.Get(e.ctx, 2, rec.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, e.engine.Delete(e.ctx, 2, rec.ID), apperr.ErrNotFound)
}

func TestBalanceInvariantOverSequence(t *testing.T) {
	e := newEnv(t)

	a := e.add(t, expenses.CreateParams{Amount: dec("10.10")})
	b := e.add(t, expenses.CreateParams{Amount: dec("99.99"), Type: model.EntryTypeIncome, Category: "salary"})
	c := e.add(t, expenses.CreateParams{Amount: dec("0.01"), AccountID: e.cardID})

	amt := dec("3.33")
	_, err := e.engine.Update(e.ctx, owner, a.ID, expenses.Patch{Amount: &amt, AccountID: &e.cardID})
	require.NoError(t, err)
	typ := model.EntryTypeExpense
	_, err = e.engine.Update(e.ctx, owner, b.ID, expenses.Patch{Type: &typ})
	require.NoError(t, err)
	require.NoError(t, e.engine.Delete(e.ctx, owner, c.ID))

	e.assertBalance(t, e.checkID, "0.01")
	e.assertBalance(t, e.cardID, "-3.33")
	e.assertConsistent(t)
}

func TestCreateBatchIsAllOrNothing(t *testing.T) {
	e := newEnv(t)

	_, err := e.engine.CreateBatch(e.ctx, owner, []expenses.CreateParams{
		{AccountID: e.checkID, Amount: dec("1"), Category: "food"},
		{AccountID: e.checkID, Amount: dec("0"), Category: "food"},
	})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "entry 2")
	e.assertBalance(t, e.checkID, "100")

	recs, err := e.engine.CreateBatch(e.ctx, owner, []expenses.CreateParams{
		{AccountID: e.checkID, Amount: dec("1"), Category: "food"},
		{AccountID: e.cardID, Amount: dec("2"), Category: "food"},
	})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	e.assertBalance(t, e.checkID, "99")
	e.assertBalance(t, e.cardID, "-2")
}

func TestDayTruncatesToUTCDate(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	in := time.Date(2026, 1, 2, 23, 59, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), expenses.Day(in))
}

func TestReferenceIsUniquePerAccount(t *testing.T) {
	e := newEnv(t)

	e.add(t, expenses.CreateParams{Amount: dec("5"), Reference: "bank_1"})
	_, err := e.engine.Create(e.ctx, owner, expenses.CreateParams{AccountID: e.checkID, Amount: dec("5"), Category: "food", Reference: "bank_1"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	e.assertBalance(t, e.checkID, "95")

	onCard := e.add(t, expenses.CreateParams{AccountID: e.cardID, Amount: dec("5"), Reference: "bank_1"})
	e.assertBalance(t, e.cardID, "-5")

	_, err = e.engine.Update(e.ctx, owner, onCard.ID, expenses.Patch{AccountID: &e.checkID})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	e.assertBalance(t, e.checkID, "95")
	e.assertBalance(t, e.cardID, "-5")
	e.assertConsistent(t)
}

func TestImportBatchSkipsBookedReferences(t *testing.T) {
	e := newEnv(t)

	batch := []expenses.CreateParams{
		{AccountID: e.checkID, Amount: dec("1"), Category: "food", Reference: "r1"},
		{AccountID: e.checkID, Amount: dec("2"), Category: "food", Reference: "r2"},
		{AccountID: e.checkID, Amount: dec("4"), Category: "food"},
	}
	recs, skipped, err := e.engine.ImportBatch(e.ctx, owner, batch)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	assert.Zero(t, skipped)

	recs, skipped, err = e.engine.ImportBatch(e.ctx, owner, batch)
	require.NoError(t, err)
	assert.Len(t, recs, 1, "only the row without a reference is booked again")
	assert.Equal(t, 2, skipped)
	e.assertBalance(t, e.checkID, "89")
	e.assertConsistent(t)

	_, err = e.engine.CreateBatch(e.ctx, owner, batch[:1])
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestOpeningCategoryIsReserved(t *testing.T) {
	e := newEnv(t)

	_, err := e.engine.Create(e.ctx, owner, expenses.CreateParams{AccountID: e.checkID, Amount: dec("1"), Category: expenses.OpeningCategory})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	rec := e.add(t, expenses.CreateParams{Amount: dec("1")})
	cat := expenses.OpeningCategory
	_, err = e.engine.Update(e.ctx, owner, rec.ID, expenses.Patch{Category: &cat})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	opening, _, err := e.engine.List(e.ctx, owner, expenses.Filter{Category: expenses.OpeningCategory})
	require.NoError(t, err)
	require.Len(t, opening, 1)
	desc := "Balance carried over"
	_, err = e.engine.Update(e.ctx, owner, opening[0].ID, expenses.Patch{Description: &desc})
	assert.NoError(t, err, "the opening record itself stays editable")
}
