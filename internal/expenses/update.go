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
)

// Patch lists record fields to change; nil means unchanged.
type Patch struct {
	AccountID    *uint
	Amount       *decimal.Decimal
	Type         *model.EntryType
	Category     *string
	Subcategory  *string
	Description  *string
	Date         *time.Time
	Tags         *[]string
	ReceiptURL   *string
	Reimbursable *bool
}

// touchesBalance reports whether p can change the record's contribution
// or the account it is booked on.
func (p Patch) touchesBalance() bool {
	return p.AccountID != nil || p.Amount != nil || p.Type != nil
}

// Update applies p to a record. When the amount, type or account changes,
// the balances move in the same transaction: by the difference when the
// account is unchanged, otherwise the old contribution leaves the old
// account and the new one lands on the new account.
func (e *Engine) Update(ctx context.Context, owner, id uint, p Patch) (model.Expense, error) {
	var (
		old, rec model.Expense
		delta    decimal.Decimal
	)
	err := e.store.Atomic(ctx, func(tx *gorm.DB) error {
		var err error
		old, err = load(tx, owner, id)
		if err != nil {
			return err
		}
		rec = old

		changes, err := apply(tx, owner, &rec, p)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}

		amountMoved := !rec.Amount.Equal(old.Amount)
		if old.Claimed() && amountMoved {
			if err := requireEditableClaim(tx, *old.ClaimID); err != nil {
				return err
			}
		}

		if err := tx.Model(&model.Expense{}).Where("id = ?", id).Updates(changes).Error; err != nil {
			return fmt.Errorf("updating record %d: %w", id, err)
		}

		if p.touchesBalance() {
			oldC, newC := old.Contribution(), rec.Contribution()
			if old.AccountID == rec.AccountID {
				delta = newC.Sub(oldC)
				if err := ledger.ApplyDelta(tx, rec.AccountID, delta); err != nil {
					return err
				}
			} else {
				delta = newC
				if err := ledger.ApplyDelta(tx, old.AccountID, oldC.Neg()); err != nil {
					return err
				}
				if err := ledger.ApplyDelta(tx, rec.AccountID, newC); err != nil {
					return err
				}
			}
		}

		if old.Claimed() && amountMoved {
			if _, err := RecomputeClaimTotal(tx, *old.ClaimID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Expense{}, err
	}
	e.logMutation("expense updated", rec, delta)
	if old.AccountID != rec.AccountID {
		e.log.Info("expense moved",
			zap.Uint(logging.FieldExpense, id),
			zap.Uint("from_account", old.AccountID),
			zap.Uint("to_account", rec.AccountID))
	}
	return rec, nil
}

// apply validates p and copies it into rec, returning the column changes.
func apply(tx *gorm.DB, owner uint, rec *model.Expense, p Patch) (map[string]any, error) {
	changes := map[string]any{}
	if p.AccountID != nil && *p.AccountID != rec.AccountID {
		acct, err := ledger.Lookup(tx, owner, *p.AccountID)
		if err != nil {
			return nil, err
		}
		if rec.Reference != "" {
			dup, err := booked(tx, owner, acct.ID, rec.Reference)
			if err != nil {
				return nil, err
			}
			if dup {
				return nil, apperr.Conflict("reference %q is already booked on account %d", rec.Reference, acct.ID)
			}
		}
		rec.AccountID = acct.ID
		changes["account_id"] = acct.ID
	}
	if p.Amount != nil {
		if err := validateAmount(*p.Amount); err != nil {
			return nil, err
		}
		rec.Amount = *p.Amount
		changes["amount"] = *p.Amount
	}
	if p.Type != nil {
		if !p.Type.Valid() {
			return nil, apperr.Validation("type", "must be expense or income")
		}
		rec.Type = *p.Type
		changes["type"] = *p.Type
	}
	if p.Category != nil {
		c := strings.TrimSpace(*p.Category)
		if c == "" {
			return nil, apperr.Validation("category", "is required")
		}
		if c != rec.Category {
			if err := reserved(c); err != nil {
				return nil, err
			}
		}
		rec.Category = c
		changes["category"] = c
	}
	if p.Subcategory != nil {
		rec.Subcategory = strings.TrimSpace(*p.Subcategory)
		changes["subcategory"] = rec.Subcategory
	}
	if p.Description != nil {
		rec.Description = *p.Description
		changes["description"] = *p.Description
	}
	if p.Date != nil {
		rec.Date = Day(*p.Date)
		changes["date"] = rec.Date
	}
	if p.Tags != nil {
		rec.Tags = model.JoinTags(*p.Tags)
		changes["tags"] = rec.Tags
	}
	if p.ReceiptURL != nil {
		rec.ReceiptURL = *p.ReceiptURL
		changes["receipt_url"] = *p.ReceiptURL
	}
	if p.Reimbursable != nil {
		if !*p.Reimbursable && rec.Claimed() {
			return nil, apperr.Conflict("record %d is part of claim %d and must stay reimbursable", rec.ID, *rec.ClaimID)
		}
		rec.Reimbursable = *p.Reimbursable
		changes["reimbursable"] = *p.Reimbursable
	}
	return changes, nil
}

func requireEditableClaim(tx *gorm.DB, claimID uint) error {
	var claim model.Claim
	if err := tx.Select("id", "status").First(&claim, claimID).Error; err != nil {
		return fmt.Errorf("loading claim %d: %w", claimID, err)
	}
	if !claim.Editable() {
		return apperr.InvalidState("claim %d is %s; amounts of its records are frozen", claimID, claim.Status)
	}
	return nil
}
