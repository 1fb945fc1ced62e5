package expenses

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/outlay-dev/outlay/internal/model"
	"github.com/outlay-dev/outlay/internal/store"
)

// Filter narrows List. Zero fields do not filter.
type Filter struct {
	Category  string
	Type      model.EntryType
	AccountID uint
	From      time.Time // inclusive
	To        time.Time // inclusive
	Search    string    // substring of description, category or subcategory
	Page      int
	PerPage   int
}

// List returns one page of owner's records, newest date first, and the
// total number of matching records.
func (e *Engine) List(ctx context.Context, owner uint, f Filter) ([]model.Expense, int64, error) {
	q := filtered(e.store.DB(ctx).Model(&model.Expense{}), owner, f)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting records: %w", err)
	}
	var recs []model.Expense
	err := q.Order("date DESC").Order("created_at DESC").Order("id DESC").
		Scopes(store.Paginate(f.Page, f.PerPage)).
		Find(&recs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("listing records: %w", err)
	}
	return recs, total, nil
}

func filtered(q *gorm.DB, owner uint, f Filter) *gorm.DB {
	q = q.Where("owner_id = ?", owner)
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.AccountID != 0 {
		q = q.Where("account_id = ?", f.AccountID)
	}
	if !f.From.IsZero() {
		q = q.Where("date >= ?", Day(f.From))
	}
	if !f.To.IsZero() {
		q = q.Where("date <= ?", Day(f.To))
	}
	if f.Search != "" {
		like := store.Contains(f.Search)
		q = q.Where(`description LIKE ? ESCAPE '\' OR category LIKE ? ESCAPE '\' OR subcategory LIKE ? ESCAPE '\'`, like, like, like)
	}
	return q
}

// Available returns owner's reimbursable records that are not on any claim,
// newest first.
func (e *Engine) Available(ctx context.Context, owner uint) ([]model.Expense, error) {
	var recs []model.Expense
	err := e.store.DB(ctx).
		Where("owner_id = ? AND reimbursable = ? AND claim_id IS NULL", owner, true).
		Order("date DESC").Order("created_at DESC").Order("id DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("listing available records: %w", err)
	}
	return recs, nil
}
