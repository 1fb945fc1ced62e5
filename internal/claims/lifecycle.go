package claims

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/outlay-dev/outlay/internal/apperr"
	"github.com/outlay-dev/outlay/internal/expenses"
	"github.com/outlay-dev/outlay/internal/logging"
	"github.com/outlay-dev/outlay/internal/model"
	"github.com/outlay-dev/outlay/internal/store"
)

// Action is the reviewer's decision on a pending claim.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Approve moves a pending claim to approved or rejected, stamping today's
// date and the reviewer's notes.
func (m *Manager) Approve(ctx context.Context, owner, id uint, action Action, notes string) (model.Claim, error) {
	var next model.ClaimStatus
	switch action {
	case ActionApprove:
		next = model.ClaimApproved
	case ActionReject:
		next = model.ClaimRejected
	default:
		return model.Claim{}, apperr.Validation("action", "must be approve or reject, got %q", action)
	}

	approved := expenses.Day(m.now())
	var claim model.Claim
	err := m.store.Atomic(ctx, func(tx *gorm.DB) error {
		var err error
		claim, err = load(tx, owner, id)
		if err != nil {
			return err
		}
		if claim.Status != model.ClaimPending {
			return apperr.InvalidState("cannot %s claim %d: status is %s", action, id, claim.Status)
		}
		claim.Status = next
		claim.ApproveDate = &approved
		claim.ApproverNotes = notes
		return transition(tx, claim)
	})
	if err != nil {
		return model.Claim{}, err
	}
	m.logTransition(owner, claim)
	return claim, nil
}

// Pay marks an approved claim as paid. Paid is terminal.
func (m *Manager) Pay(ctx context.Context, owner, id uint) (model.Claim, error) {
	var claim model.Claim
	err := m.store.Atomic(ctx, func(tx *gorm.DB) error {
		var err error
		claim, err = load(tx, owner, id)
		if err != nil {
			return err
		}
		if claim.Status != model.ClaimApproved {
			return apperr.InvalidState("cannot pay claim %d: status is %s", id, claim.Status)
		}
		claim.Status = model.ClaimPaid
		return transition(tx, claim)
	})
	if err != nil {
		return model.Claim{}, err
	}
	m.logTransition(owner, claim)
	return claim, nil
}

func transition(tx *gorm.DB, claim model.Claim) error {
	err := tx.Model(&model.Claim{}).Where("id = ?", claim.ID).Updates(map[string]any{
		"status":         claim.Status,
		"approve_date":   claim.ApproveDate,
		"approver_notes": claim.ApproverNotes,
	}).Error
	if err != nil {
		return fmt.Errorf("moving claim %d to %s: %w", claim.ID, claim.Status, err)
	}
	return nil
}

func (m *Manager) logTransition(owner uint, claim model.Claim) {
	m.log.Info("claim status changed",
		zap.Uint(logging.FieldOwner, owner),
		zap.Uint(logging.FieldClaim, claim.ID),
		zap.String(logging.FieldStatus, string(claim.Status)))
}

// Filter narrows List. Zero fields do not filter.
type Filter struct {
	Status  model.ClaimStatus
	From    time.Time // submit date, inclusive
	To      time.Time // submit date, inclusive
	Search  string    // substring of title or description
	Page    int
	PerPage int
}

// List returns one page of owner's claims, newest first, and the total
// number of matching claims. Linked records are not loaded.
func (m *Manager) List(ctx context.Context, owner uint, f Filter) ([]model.Claim, int64, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, apperr.Validation("status", "must be one of %v", model.ClaimStatuses)
	}
	q := m.store.DB(ctx).Model(&model.Claim{}).Where("owner_id = ?", owner)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if !f.From.IsZero() {
		q = q.Where("submit_date >= ?", expenses.Day(f.From))
	}
	if !f.To.IsZero() {
		q = q.Where("submit_date <= ?", expenses.Day(f.To))
	}
	if f.Search != "" {
		like := store.Contains(f.Search)
		q = q.Where(`title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\'`, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting claims: %w", err)
	}
	var out []model.Claim
	err := q.Order("created_at DESC").Order("id DESC").
		Scopes(store.Paginate(f.Page, f.PerPage)).
		Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("listing claims: %w", err)
	}
	return out, total, nil
}

// StatusOptions returns every claim status in lifecycle order.
func (m *Manager) StatusOptions() []model.ClaimStatus {
	return model.ClaimStatuses
}
