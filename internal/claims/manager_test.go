package claims_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outlay-dev/outlay/internal/apperr"
	"github.com/outlay-dev/outlay/internal/claims"
	"github.com/outlay-dev/outlay/internal/expenses"
	"github.com/outlay-dev/outlay/internal/ledger"
	"github.com/outlay-dev/outlay/internal/logging"
	"github.com/outlay-dev/outlay/internal/model"
	"github.com/outlay-dev/outlay/internal/store/storetest"
)

const owner uint = 7

var today = time.Date(2026, 4, 20, 16, 0, 0, 0, time.UTC)

type env struct {
	ctx     context.Context
	engine  *expenses.Engine
	ledger  *ledger.Service
	claims  *claims.Manager
	account uint
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := storetest.Open(t)
	clock := func() time.Time { return today }
	eng := expenses.NewEngine(st, clock, logging.Nop())
	led := ledger.NewService(st, eng, logging.Nop())
	ctx := context.Background()

	acct, err := led.Create(ctx, owner, ledger.CreateParams{Name: "Card", Type: model.AccountTypeCreditCard})
	require.NoError(t, err)
	return &env{
		ctx:     ctx,
		engine:  eng,
		ledger:  led,
		claims:  claims.NewManager(st, eng, clock, logging.Nop()),
		account: acct.ID,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (e *env) expense(t *testing.T, amount string, reimbursable bool) uint {
	t.Helper()
	rec, err := e.engine.Create(e.ctx, owner, expenses.CreateParams{
		AccountID:    e.account,
		Amount:       dec(amount),
		Category:     "travel",
		Reimbursable: reimbursable,
	})
	require.NoError(t, err)
	return rec.ID
}

func (e *env) claimOf(t *testing.T, recordID uint) *uint {
	t.Helper()
	rec, err := e.engine.Get(e.ctx, owner, recordID)
	require.NoError(t, err)
	return rec.ClaimID
}

func (e *env) create(t *testing.T, ids ...uint) model.Claim {
	t.Helper()
	c, err := e.claims.Create(e.ctx, owner, claims.CreateParams{Title: "Trip", ExpenseIDs: ids})
	require.NoError(t, err)
	return c
}

func TestCreateClaim(t *testing.T) {
	e := newEnv(t)
	a := e.expense(t, "12.30", true)
	b := e.expense(t, "7.70", true)

	c, err := e.claims.Create(e.ctx, owner, claims.CreateParams{Title: " Berlin trip ", ExpenseIDs: []uint{a, b, a}})
	require.NoError(t, err)
	assert.Equal(t, "Berlin trip", c.Title)
	assert.Equal(t, model.ClaimPending, c.Status)
	assert.True(t, c.TotalAmount.Equal(dec("20")), "got %s", c.TotalAmount)
	assert.Equal(t, time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC), c.SubmitDate)
	assert.Nil(t, c.ApproveDate)

	require.NotNil(t, e.claimOf(t, a))
	assert.Equal(t, c.ID, *e.claimOf(t, a))
	assert.Equal(t, c.ID, *e.claimOf(t, b))

	got, err := e.claims.Get(e.ctx, owner, c.ID)
	require.NoError(t, err)
	assert.Len(t, got.Expenses, 2)
	assert.True(t, got.TotalAmount.Equal(dec("20")))
}

func TestCreateClaimValidation(t *testing.T) {
	e := newEnv(t)
	a := e.expense(t, "1", true)

	tests := []struct {
		name   string
		params claims.CreateParams
	}{
		{"no title", claims.CreateParams{ExpenseIDs: []uint{a}}},
		{"no records", claims.CreateParams{Title: "T"}},
		{"zero id", claims.CreateParams{Title: "T", ExpenseIDs: []uint{0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.claims.Create(e.ctx, owner, tt.params)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestCreateClaimIsAllOrNothing(t *testing.T) {
	e := newEnv(t)
	free := e.expense(t, "10", true)
	taken := e.expense(t, "20", true)
	plain := e.expense(t, "30", false)
	first := e.create(t, taken)

	tests := []struct {
		name string
		ids  []uint
	}{
		{"already claimed", []uint{free, taken}},
		{"not reimbursable", []uint{free, plain}},
		{"missing", []uint{free, 9999}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.claims.Create(e.ctx, owner, claims.CreateParams{Title: "Second", ExpenseIDs: tt.ids})
			assert.ErrorIs(t, err, apperr.ErrValidation)
			assert.Nil(t, e.claimOf(t, free), "nothing may be linked")
			assert.Equal(t, first.ID, *e.claimOf(t, taken))
		})
	}

	list, total, err := e.claims.List(e.ctx, owner, claims.Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total, "no claim row was created")
	assert.Equal(t, first.ID, list[0].ID)
}

func TestCreateClaimRejectsForeignRecords(t *testing.T) {
	e := newEnv(t)
	a := e.expense(t, "5", true)

	_, err := e.claims.Create(e.ctx, owner+1, claims.CreateParams{Title: "Not mine", ExpenseIDs: []uint{a}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Nil(t, e.claimOf(t, a))
}

func TestUpdateClaimReplacesRecords(t *testing.T) {
	e := newEnv(t)
	a := e.expense(t, "10", true)
	b := e.expense(t, "20", true)
	c := e.expense(t, "40", true)
	claim := e.create(t, a, b)

	ids := []uint{b, c}
	title := "Renamed"
	got, err := e.claims.Update(e.ctx, owner, claim.ID, claims.Patch{Title: &title, ExpenseIDs: &ids})
	require.NoError(t, err, "b was on this claim and is released before validation")
	assert.Equal(t, "Renamed", got.Title)
	assert.True(t, got.TotalAmount.Equal(dec("60")))

	assert.Nil(t, e.claimOf(t, a))
	assert.Equal(t, claim.ID, *e.claimOf(t, b))
	assert.Equal(t, claim.ID, *e.claimOf(t, c))

	stored, err := e.claims.Get(e.ctx, owner, claim.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(dec("60")))
	assert.Equal(t, "Renamed", stored.Title)
}

func TestUpdateClaimSameRecords(t *testing.T) {
	e := newEnv(t)
	a := e.expense(t, "10", true)
	claim := e.create(t, a)

	ids := []uint{a}
	got, err := e.claims.Update(e.ctx, owner, claim.ID, claims.Patch{ExpenseIDs: &ids})
	require.NoError(t, err)
	assert.True(t, got.TotalAmount.Equal(dec("10")))
}

func TestUpdateClaimIneligibleRollsBack(t *testing.T) {
	e := newEnv(t)
	a := e.expense(t, "10", true)
	other := e.expense(t, "15", true)
	claim := e.create(t, a)
	otherClaim := e.create(t, other)

	ids := []uint{a, other}
	title := "Should not stick"
	_, err := e.claims.Update(e.ctx, owner, claim.ID, claims.Patch{Title: &title, ExpenseIDs: &ids})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.Equal(t, claim.ID, *e.claimOf(t, a), "unlink is rolled back")
	assert.Equal(t, otherClaim.ID, *e.claimOf(t, other))
	stored, err := e.claims.Get(e.ctx, owner, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, "Trip", stored.Title)
	assert.True(t, stored.TotalAmount.Equal(dec("10")))
}

func TestUpdateClaimFieldsOnlyKeepsLinks(t *testing.T) {
	e := newEnv(t)
	a := e.expense(t, "10", true)
	claim := e.create(t, a)

	desc := "hotel"
	got, err := e.claims.Update(e.ctx, owner, claim.ID, claims.Patch{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "hotel", got.Description)
	assert.Equal(t, claim.ID, *e.claimOf(t, a))

	empty := []uint{}
	_, err = e.claims.Update(e.ctx, owner, claim.ID, claims.Patch{ExpenseIDs: &empty})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDeleteClaimReleasesRecords(t *testing.T) {
	e := newEnv(t)
	a := e.expense(t, "10", true)
	claim := e.create(t, a)

	require.NoError(t, e.claims.Delete(e.ctx, owner, claim.ID))
	assert.Nil(t, e.claimOf(t, a))

	_, err := e.claims.Get(e.ctx, owner, claim.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	avail, err := e.claims.Available(e.ctx, owner)
	require.NoError(t, err)
	require.Len(t, avail, 1)
	assert.Equal(t, a, avail[0].ID)
}

func TestForeignClaimIsNotFound(t *testing.T) {
	e := newEnv(t)
	claim := e.create(t, e.expense(t, "10", true))

	_, err := e.claims.Get(e.ctx, owner+1, claim.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, e.claims.Delete(e.ctx, owner+1, claim.ID), apperr.ErrNotFound)
	_, err = e.claims.Approve(e.ctx, owner+1, claim.ID, claims.ActionApprove, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestClaimsNeverTouchBalances(t *testing.T) {
	e := newEnv(t)
	a := e.expense(t, "10", true)
	claim := e.create(t, a)
	_, err := e.claims.Approve(e.ctx, owner, claim.ID, claims.ActionApprove, "")
	require.NoError(t, err)
	_, err = e.claims.Pay(e.ctx, owner, claim.ID)
	require.NoError(t, err)

	acct, err := e.ledger.Get(e.ctx, owner, e.account)
	require.NoError(t, err)
	assert.True(t, acct.Balance.Equal(dec("-10")))
}
