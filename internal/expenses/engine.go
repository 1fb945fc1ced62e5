// Package expenses creates, edits and deletes expense and income records,
// pairing each mutation with the matching balance adjustment in the same
// transaction.
package expenses

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/outlay-dev/outlay/internal/apperr"
	"github.com/outlay-dev/outlay/internal/ledger"
	"github.com/outlay-dev/outlay/internal/logging"
	"github.com/outlay-dev/outlay/internal/model"
	"github.com/outlay-dev/outlay/internal/store"
)

// Clock supplies the current time for defaulted dates.
type Clock func() time.Time

// OpeningCategory is the category of records booked for opening balances.
const OpeningCategory = "opening_balance"

// Engine is the expense transaction engine.
type Engine struct {
	store *store.Store
	now   Clock
	log   *zap.Logger
}

// NewEngine creates an Engine. A nil clock uses time.Now.
func NewEngine(st *store.Store, now Clock, log *zap.Logger) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{store: st, now: now, log: log.Named("expenses")}
}

// CreateParams holds parameters for recording an expense or income.
type CreateParams struct {
	AccountID    uint
	Amount       decimal.Decimal
	Type         model.EntryType // defaults to expense
	Category     string
	Subcategory  string
	Description  string
	Date         time.Time // defaults to today
	Tags         []string
	ReceiptURL   string
	Reimbursable bool
	Reference    string // unique per account when set
}

// Create records a new expense or income and adjusts its account.
func (e *Engine) Create(ctx context.Context, owner uint, params CreateParams) (model.Expense, error) {
	if err := reserved(params.Category); err != nil {
		return model.Expense{}, err
	}
	var rec model.Expense
	err := e.store.Atomic(ctx, func(tx *gorm.DB) error {
		var err error
		rec, err = e.create(tx, owner, params)
		return err
	})
	if err != nil {
		return model.Expense{}, err
	}
	e.logMutation("expense created", rec, rec.Contribution())
	return rec, nil
}

// CreateBatch records every entry in one transaction: either all are
// booked or none is.
func (e *Engine) CreateBatch(ctx context.Context, owner uint, batch []CreateParams) ([]model.Expense, error) {
	out, _, err := e.createBatch(ctx, owner, batch, false)
	return out, err
}

// ImportBatch is CreateBatch for imported rows: entries whose Reference is
// already booked on their account are skipped and counted instead of
// failing the batch.
func (e *Engine) ImportBatch(ctx context.Context, owner uint, batch []CreateParams) ([]model.Expense, int, error) {
	return e.createBatch(ctx, owner, batch, true)
}

func (e *Engine) createBatch(ctx context.Context, owner uint, batch []CreateParams, skipBooked bool) ([]model.Expense, int, error) {
	out := make([]model.Expense, 0, len(batch))
	skipped := 0
	err := e.store.Atomic(ctx, func(tx *gorm.DB) error {
		for i, p := range batch {
			if err := reserved(p.Category); err != nil {
				return fmt.Errorf("entry %d: %w", i+1, err)
			}
			if skipBooked && p.Reference != "" {
				ok, err := booked(tx, owner, p.AccountID, strings.TrimSpace(p.Reference))
				if err != nil {
					return err
				}
				if ok {
					skipped++
					continue
				}
			}
			rec, err := e.create(tx, owner, p)
			if err != nil {
				return fmt.Errorf("entry %d: %w", i+1, err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	e.log.Info("expense batch created",
		zap.Uint(logging.FieldOwner, owner),
		zap.Int("count", len(out)),
		zap.Int("skipped", skipped))
	return out, skipped, nil
}

// RecordOpening books an opening balance on a freshly created account.
// Positive amounts become income, negative ones an expense.
func (e *Engine) RecordOpening(tx *gorm.DB, acct model.Account, amount decimal.Decimal) error {
	typ := model.EntryTypeIncome
	if amount.IsNegative() {
		typ = model.EntryTypeExpense
	}
	_, err := e.create(tx, acct.OwnerID, CreateParams{
		AccountID:   acct.ID,
		Amount:      amount.Abs(),
		Type:        typ,
		Category:    OpeningCategory,
		Description: "Opening balance",
	})
	return err
}

func (e *Engine) create(tx *gorm.DB, owner uint, p CreateParams) (model.Expense, error) {
	if p.Type == "" {
		p.Type = model.EntryTypeExpense
	}
	if err := validateAmount(p.Amount); err != nil {
		return model.Expense{}, err
	}
	if !p.Type.Valid() {
		return model.Expense{}, apperr.Validation("type", "must be expense or income")
	}
	category := strings.TrimSpace(p.Category)
	if category == "" {
		return model.Expense{}, apperr.Validation("category", "is required")
	}
	date := p.Date
	if date.IsZero() {
		date = e.now()
	}

	acct, err := ledger.Lookup(tx, owner, p.AccountID)
	if err != nil {
		return model.Expense{}, err
	}
	ref := strings.TrimSpace(p.Reference)
	if ref != "" {
		dup, err := booked(tx, owner, acct.ID, ref)
		if err != nil {
			return model.Expense{}, err
		}
		if dup {
			return model.Expense{}, apperr.Conflict("reference %q is already booked on account %d", ref, acct.ID)
		}
	}

	rec := model.Expense{
		OwnerID:      owner,
		AccountID:    acct.ID,
		Amount:       p.Amount,
		Type:         p.Type,
		Category:     category,
		Subcategory:  strings.TrimSpace(p.Subcategory),
		Description:  p.Description,
		Date:         Day(date),
		Tags:         model.JoinTags(p.Tags),
		ReceiptURL:   p.ReceiptURL,
		Reimbursable: p.Reimbursable,
		Reference:    ref,
	}
	if err := tx.Create(&rec).Error; err != nil {
		if store.IsUniqueViolation(err) {
			return model.Expense{}, apperr.Conflict("reference %q is already booked on account %d", ref, acct.ID)
		}
		return model.Expense{}, fmt.Errorf("creating record: %w", err)
	}
	if err := ledger.ApplyDelta(tx, acct.ID, rec.Contribution()); err != nil {
		return model.Expense{}, err
	}
	return rec, nil
}

// Get returns one record of owner.
func (e *Engine) Get(ctx context.Context, owner, id uint) (model.Expense, error) {
	return load(e.store.DB(ctx), owner, id)
}

// Delete reverses the record's contribution and removes it. Records linked
// to a claim must be taken off the claim first.
func (e *Engine) Delete(ctx context.Context, owner, id uint) error {
	var rec model.Expense
	err := e.store.Atomic(ctx, func(tx *gorm.DB) error {
		var err error
		rec, err = load(tx, owner, id)
		if err != nil {
			return err
		}
		if rec.Claimed() {
			return apperr.Conflict("record %d is part of claim %d; remove it from the claim first", id, *rec.ClaimID)
		}
		if err := ledger.ApplyDelta(tx, rec.AccountID, rec.Contribution().Neg()); err != nil {
			return err
		}
		if err := tx.Delete(&model.Expense{}, id).Error; err != nil {
			return fmt.Errorf("deleting record %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.logMutation("expense deleted", rec, rec.Contribution().Neg())
	return nil
}

func (e *Engine) logMutation(msg string, rec model.Expense, delta decimal.Decimal) {
	e.log.Info(msg,
		zap.Uint(logging.FieldOwner, rec.OwnerID),
		zap.Uint(logging.FieldExpense, rec.ID),
		zap.Uint(logging.FieldAccount, rec.AccountID),
		zap.String(logging.FieldAmount, rec.Amount.StringFixed(2)),
		zap.String(logging.FieldDelta, delta.StringFixed(2)))
}

func load(db *gorm.DB, owner, id uint) (model.Expense, error) {
	var rec model.Expense
	err := db.Where("id = ? AND owner_id = ?", id, owner).First(&rec).Error
	if err != nil {
		if store.IsNotFound(err) {
			return model.Expense{}, apperr.NotFound("record", id)
		}
		return model.Expense{}, fmt.Errorf("loading record %d: %w", id, err)
	}
	return rec, nil
}

// booked reports whether ref is already used on the account.
func booked(tx *gorm.DB, owner, accountID uint, ref string) (bool, error) {
	var n int64
	err := tx.Model(&model.Expense{}).
		Where("owner_id = ? AND account_id = ? AND reference = ?", owner, accountID, ref).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("looking up reference %q: %w", ref, err)
	}
	return n > 0, nil
}

// reserved rejects the category kept for opening balance records.
func reserved(category string) error {
	if strings.TrimSpace(category) == OpeningCategory {
		return apperr.Validation("category", "%q is reserved for opening balances", OpeningCategory)
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperr.Validation("amount", "must be greater than zero")
	}
	if amount.Exponent() < -2 && !amount.Equal(amount.Round(2)) {
		return apperr.Validation("amount", "%s has more than 2 decimal places", amount)
	}
	return nil
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
