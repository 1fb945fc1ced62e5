package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/outlay-dev/outlay/internal/apperr"
	"github.com/outlay-dev/outlay/internal/logging"
	"github.com/outlay-dev/outlay/internal/model"
	"github.com/outlay-dev/outlay/internal/store"
)

// OpeningRecorder books an opening balance as a regular record so the
// balance stays equal to the sum of its records.
type OpeningRecorder interface {
	RecordOpening(tx *gorm.DB, acct model.Account, amount decimal.Decimal) error
}

// Service provides account management on top of the store.
type Service struct {
	store   *store.Store
	opening OpeningRecorder
	log     *zap.Logger
}

// NewService creates an account Service. opening may be nil, in which case
// a non-zero opening balance is rejected.
func NewService(st *store.Store, opening OpeningRecorder, log *zap.Logger) *Service {
	return &Service{store: st, opening: opening, log: log.Named("ledger")}
}

// CreateParams holds parameters for opening an account.
type CreateParams struct {
	Name           string
	Type           model.AccountType
	Description    string
	OpeningBalance decimal.Decimal // may be negative, e.g. credit card debt
}

// Create opens a new account for owner.
func (s *Service) Create(ctx context.Context, owner uint, params CreateParams) (model.Account, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return model.Account{}, apperr.Validation("name", "is required")
	}
	if !params.Type.Valid() {
		return model.Account{}, apperr.Validation("type", "must be one of %v", model.AccountTypes)
	}
	opening := params.OpeningBalance
	if !opening.Equal(opening.Round(2)) {
		return model.Account{}, apperr.Validation("opening_balance", "%s has more than 2 decimal places", opening)
	}
	if !opening.IsZero() && s.opening == nil {
		return model.Account{}, apperr.Validation("opening_balance", "not supported")
	}

	acct := model.Account{
		OwnerID:     owner,
		Name:        name,
		Type:        params.Type,
		Balance:     decimal.Zero,
		Description: params.Description,
		Active:      true,
	}
	err := s.store.Atomic(ctx, func(tx *gorm.DB) error {
		if err := s.ensureUniqueName(tx, owner, name, 0); err != nil {
			return err
		}
		if err := tx.Create(&acct).Error; err != nil {
			if store.IsUniqueViolation(err) {
				return apperr.Conflict("account name %q already exists", name)
			}
			return fmt.Errorf("creating account: %w", err)
		}
		if !opening.IsZero() {
			if err := s.opening.RecordOpening(tx, acct, opening); err != nil {
				return err
			}
			acct.Balance = opening
		}
		return nil
	})
	if err != nil {
		return model.Account{}, err
	}

	s.log.Info("account created",
		zap.Uint(logging.FieldOwner, owner),
		zap.Uint(logging.FieldAccount, acct.ID),
		zap.String(logging.FieldAmount, acct.Balance.StringFixed(2)))
	return acct, nil
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, owner, id uint) (model.Account, error) {
	return Lookup(s.store.DB(ctx), owner, id)
}

// ListFilter narrows List. Nil/zero fields do not filter.
type ListFilter struct {
	Type    model.AccountType
	Active  *bool
	Page    int
	PerPage int
}

// List returns one page of owner's accounts, newest first, and the total
// number of matching accounts.
func (s *Service) List(ctx context.Context, owner uint, f ListFilter) ([]model.Account, int64, error) {
	q := s.store.DB(ctx).Model(&model.Account{}).Where("owner_id = ?", owner)
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Active != nil {
		q = q.Where("active = ?", *f.Active)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting accounts: %w", err)
	}
	var accts []model.Account
	err := q.Order("created_at DESC").Order("id DESC").
		Scopes(store.Paginate(f.Page, f.PerPage)).
		Find(&accts).Error
	if err != nil {
		return nil, 0, fmt.Errorf("listing accounts: %w", err)
	}
	return accts, total, nil
}

// Patch lists account fields to change; nil means unchanged. There is
// deliberately no balance field.
type Patch struct {
	Name        *string
	Type        *model.AccountType
	Description *string
	Active      *bool
}

// Update applies p to an account.
func (s *Service) Update(ctx context.Context, owner, id uint, p Patch) (model.Account, error) {
	var acct model.Account
	err := s.store.Atomic(ctx, func(tx *gorm.DB) error {
		var err error
		acct, err = Lookup(tx, owner, id)
		if err != nil {
			return err
		}

		changes := map[string]any{}
		if p.Name != nil {
			name := strings.TrimSpace(*p.Name)
			if name == "" {
				return apperr.Validation("name", "is required")
			}
			if err := s.ensureUniqueName(tx, owner, name, id); err != nil {
				return err
			}
			acct.Name = name
			changes["name"] = name
		}
		if p.Type != nil {
			if !p.Type.Valid() {
				return apperr.Validation("type", "must be one of %v", model.AccountTypes)
			}
			acct.Type = *p.Type
			changes["type"] = *p.Type
		}
		if p.Description != nil {
			acct.Description = *p.Description
			changes["description"] = *p.Description
		}
		if p.Active != nil {
			acct.Active = *p.Active
			changes["active"] = *p.Active
		}
		if len(changes) == 0 {
			return nil
		}
		if err := tx.Model(&model.Account{}).Where("id = ?", id).Updates(changes).Error; err != nil {
			if store.IsUniqueViolation(err) {
				return apperr.Conflict("account name %q already exists", acct.Name)
			}
			return fmt.Errorf("updating account %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return model.Account{}, err
	}
	s.log.Info("account updated", zap.Uint(logging.FieldOwner, owner), zap.Uint(logging.FieldAccount, id))
	return acct, nil
}

// Delete removes an account that no record references.
func (s *Service) Delete(ctx context.Context, owner, id uint) error {
	err := s.store.Atomic(ctx, func(tx *gorm.DB) error {
		if _, err := Lookup(tx, owner, id); err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&model.Expense{}).Where("account_id = ?", id).Count(&n).Error; err != nil {
			return fmt.Errorf("counting records of account %d: %w", id, err)
		}
		if n > 0 {
			return apperr.Conflict("account %d has %d records; delete them or deactivate the account", id, n)
		}
		if err := tx.Delete(&model.Account{}, id).Error; err != nil {
			return fmt.Errorf("deleting account %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("account deleted", zap.Uint(logging.FieldOwner, owner), zap.Uint(logging.FieldAccount, id))
	return nil
}

// Types returns the account type options.
func (s *Service) Types() []model.AccountType {
	return model.AccountTypes
}

func (s *Service) ensureUniqueName(tx *gorm.DB, owner uint, name string, exceptID uint) error {
	q := tx.Model(&model.Account{}).Where("owner_id = ? AND name = ?", owner, name)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return fmt.Errorf("checking account name: %w", err)
	}
	if n > 0 {
		return apperr.Conflict("account name %q already exists", name)
	}
	return nil
}
