// Package claims bundles reimbursable records into reimbursement claims and
// drives their approval lifecycle. It links records but never moves
// balances.
package claims

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/outlay-dev/outlay/internal/apperr"
	"github.com/outlay-dev/outlay/internal/expenses"
	"github.com/outlay-dev/outlay/internal/logging"
	"github.com/outlay-dev/outlay/internal/model"
	"github.com/outlay-dev/outlay/internal/store"
)

// Manager is the reimbursement claim manager.
type Manager struct {
	store  *store.Store
	engine *expenses.Engine
	now    expenses.Clock
	log    *zap.Logger
}

// NewManager creates a Manager. A nil clock uses time.Now.
func NewManager(st *store.Store, engine *expenses.Engine, now expenses.Clock, log *zap.Logger) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{store: st, engine: engine, now: now, log: log.Named("claims")}
}

// CreateParams holds parameters for submitting a claim.
type CreateParams struct {
	Title       string
	Description string
	ExpenseIDs  []uint
	SubmitDate  time.Time // defaults to today
}

// Create opens a pending claim over the given records. Every id must be an
// eligible record of owner, otherwise nothing is claimed.
func (m *Manager) Create(ctx context.Context, owner uint, params CreateParams) (model.Claim, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return model.Claim{}, apperr.Validation("title", "is required")
	}
	ids, err := normalizeIDs(params.ExpenseIDs)
	if err != nil {
		return model.Claim{}, err
	}
	submit := params.SubmitDate
	if submit.IsZero() {
		submit = m.now()
	}

	claim := model.Claim{
		OwnerID:     owner,
		Title:       title,
		Description: params.Description,
		Status:      model.ClaimPending,
		SubmitDate:  expenses.Day(submit),
	}
	err = m.store.Atomic(ctx, func(tx *gorm.DB) error {
		if err := requireClaimable(tx, owner, ids); err != nil {
			return err
		}
		if err := tx.Create(&claim).Error; err != nil {
			return fmt.Errorf("creating claim: %w", err)
		}
		return m.relink(tx, &claim, ids)
	})
	if err != nil {
		return model.Claim{}, err
	}

	m.log.Info("claim created",
		zap.Uint(logging.FieldOwner, owner),
		zap.Uint(logging.FieldClaim, claim.ID),
		zap.Int("records", len(ids)),
		zap.String(logging.FieldAmount, claim.TotalAmount.StringFixed(2)))
	return claim, nil
}

// Get returns a claim with its linked records.
func (m *Manager) Get(ctx context.Context, owner, id uint) (model.Claim, error) {
	db := m.store.DB(ctx)
	claim, err := load(db, owner, id)
	if err != nil {
		return model.Claim{}, err
	}
	claim.Expenses, err = expenses.ByClaim(db, id)
	if err != nil {
		return model.Claim{}, err
	}
	return claim, nil
}

// Patch lists claim fields to change; nil means unchanged. A non-nil
// ExpenseIDs replaces the linked set.
type Patch struct {
	Title       *string
	Description *string
	SubmitDate  *time.Time
	ExpenseIDs  *[]uint
}

// Update edits a pending claim. A new record set is validated only after
// the current links are released, so resubmitting records already on this
// claim is allowed.
func (m *Manager) Update(ctx context.Context, owner, id uint, p Patch) (model.Claim, error) {
	var claim model.Claim
	err := m.store.Atomic(ctx, func(tx *gorm.DB) error {
		var err error
		claim, err = loadPending(tx, owner, id, "edit")
		if err != nil {
			return err
		}

		changes := map[string]any{}
		if p.Title != nil {
			title := strings.TrimSpace(*p.Title)
			if title == "" {
				return apperr.Validation("title", "is required")
			}
			claim.Title = title
			changes["title"] = title
		}
		if p.Description != nil {
			claim.Description = *p.Description
			changes["description"] = *p.Description
		}
		if p.SubmitDate != nil {
			claim.SubmitDate = expenses.Day(*p.SubmitDate)
			changes["submit_date"] = claim.SubmitDate
		}
		if len(changes) > 0 {
			if err := tx.Model(&model.Claim{}).Where("id = ?", id).Updates(changes).Error; err != nil {
				return fmt.Errorf("updating claim %d: %w", id, err)
			}
		}

		if p.ExpenseIDs == nil {
			return nil
		}
		ids, err := normalizeIDs(*p.ExpenseIDs)
		if err != nil {
			return err
		}
		if err := expenses.Unlink(tx, id); err != nil {
			return err
		}
		if err := requireClaimable(tx, owner, ids); err != nil {
			return err
		}
		return m.relink(tx, &claim, ids)
	})
	if err != nil {
		return model.Claim{}, err
	}
	m.log.Info("claim updated",
		zap.Uint(logging.FieldOwner, owner),
		zap.Uint(logging.FieldClaim, id),
		zap.String(logging.FieldAmount, claim.TotalAmount.StringFixed(2)))
	return claim, nil
}

// Delete removes a pending claim and releases its records.
func (m *Manager) Delete(ctx context.Context, owner, id uint) error {
	err := m.store.Atomic(ctx, func(tx *gorm.DB) error {
		if _, err := loadPending(tx, owner, id, "delete"); err != nil {
			return err
		}
		if err := expenses.Unlink(tx, id); err != nil {
			return err
		}
		if err := tx.Delete(&model.Claim{}, id).Error; err != nil {
			return fmt.Errorf("deleting claim %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.log.Info("claim deleted", zap.Uint(logging.FieldOwner, owner), zap.Uint(logging.FieldClaim, id))
	return nil
}

// Available lists owner's records that a new claim could include.
func (m *Manager) Available(ctx context.Context, owner uint) ([]model.Expense, error) {
	return m.engine.Available(ctx, owner)
}

// relink attaches ids to claim and refreshes its total.
func (m *Manager) relink(tx *gorm.DB, claim *model.Claim, ids []uint) error {
	if err := expenses.Link(tx, claim.ID, ids); err != nil {
		return err
	}
	total, err := expenses.RecomputeClaimTotal(tx, claim.ID)
	if err != nil {
		return err
	}
	claim.TotalAmount = total
	return nil
}

func requireClaimable(tx *gorm.DB, owner uint, ids []uint) error {
	n, err := expenses.CountClaimable(tx, owner, ids)
	if err != nil {
		return err
	}
	if n != int64(len(ids)) {
		return apperr.Validation("expense_ids",
			"%d of %d records are missing, not reimbursable or already claimed", int64(len(ids))-n, len(ids))
	}
	return nil
}

// normalizeIDs drops duplicates and rejects an empty or zero-id selection.
func normalizeIDs(ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, apperr.Validation("expense_ids", "select at least one record")
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	out = slices.Compact(out)
	if out[0] == 0 {
		return nil, apperr.Validation("expense_ids", "0 is not a record id")
	}
	return out, nil
}

func load(db *gorm.DB, owner, id uint) (model.Claim, error) {
	var claim model.Claim
	err := db.Where("id = ? AND owner_id = ?", id, owner).First(&claim).Error
	if err != nil {
		if store.IsNotFound(err) {
			return model.Claim{}, apperr.NotFound("claim", id)
		}
		return model.Claim{}, fmt.Errorf("loading claim %d: %w", id, err)
	}
	return claim, nil
}

func loadPending(tx *gorm.DB, owner, id uint, verb string) (model.Claim, error) {
	claim, err := load(tx, owner, id)
	if err != nil {
		return model.Claim{}, err
	}
	if !claim.Editable() {
		return model.Claim{}, apperr.InvalidState("cannot %s claim %d: status is %s", verb, id, claim.Status)
	}
	return claim, nil
}
