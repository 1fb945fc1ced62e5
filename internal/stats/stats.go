// Package stats aggregates ledger state for reporting. It only reads.
package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/outlay-dev/outlay/internal/apperr"
	"github.com/outlay-dev/outlay/internal/expenses"
	"github.com/outlay-dev/outlay/internal/model"
	"github.com/outlay-dev/outlay/internal/store"
)

// Period selects the window of an Overview.
type Period string

const (
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
	PeriodAll   Period = "all"
)

// Service computes statistics over one owner's ledger.
type Service struct {
	store *store.Store
	now   expenses.Clock
}

// NewService creates a stats Service. A nil clock uses time.Now.
func NewService(st *store.Store, now expenses.Clock) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: st, now: now}
}

// ClaimSummary counts claims of one status.
type ClaimSummary struct {
	Count  int
	Amount decimal.Decimal
}

// Overview summarizes a period.
type Overview struct {
	Period       Period
	From         time.Time // zero for PeriodAll
	TotalExpense decimal.Decimal
	TotalIncome  decimal.Decimal
	Net          decimal.Decimal
	TotalBalance decimal.Decimal // active accounts, independent of period
	RecordCount  int             // opening balance records excluded
	Claims       map[model.ClaimStatus]ClaimSummary
}

// Overview totals records dated within period, plus the current balance of
// active accounts and the claims submitted within period.
func (s *Service) Overview(ctx context.Context, owner uint, period Period) (Overview, error) {
	from, err := s.periodStart(period)
	if err != nil {
		return Overview{}, err
	}
	db := s.store.DB(ctx)
	out := Overview{
		Period:       period,
		From:         from,
		TotalExpense: decimal.Zero,
		TotalIncome:  decimal.Zero,
		TotalBalance: decimal.Zero,
		Claims:       make(map[model.ClaimStatus]ClaimSummary, len(model.ClaimStatuses)),
	}

	var recs []model.Expense
	if err := since(db.Select("amount", "type"), "date", from).
		Scopes(activity(owner)).Find(&recs).Error; err != nil {
		return Overview{}, fmt.Errorf("loading records: %w", err)
	}
	for _, r := range recs {
		if r.Type == model.EntryTypeIncome {
			out.TotalIncome = out.TotalIncome.Add(r.Amount)
		} else {
			out.TotalExpense = out.TotalExpense.Add(r.Amount)
		}
	}
	out.RecordCount = len(recs)
	out.Net = out.TotalIncome.Sub(out.TotalExpense)

	var accts []model.Account
	if err := db.Select("balance").Where("owner_id = ? AND active = ?", owner, true).Find(&accts).Error; err != nil {
		return Overview{}, fmt.Errorf("loading accounts: %w", err)
	}
	for _, a := range accts {
		out.TotalBalance = out.TotalBalance.Add(a.Balance)
	}

	var cls []model.Claim
	if err := since(db.Select("status", "total_amount"), "submit_date", from).
		Where("owner_id = ?", owner).Find(&cls).Error; err != nil {
		return Overview{}, fmt.Errorf("loading claims: %w", err)
	}
	for _, st := range model.ClaimStatuses {
		out.Claims[st] = ClaimSummary{Amount: decimal.Zero}
	}
	for _, c := range cls {
		sum := out.Claims[c.Status]
		sum.Count++
		sum.Amount = sum.Amount.Add(c.TotalAmount)
		out.Claims[c.Status] = sum
	}
	return out, nil
}

func (s *Service) periodStart(p Period) (time.Time, error) {
	now := s.now().UTC()
	switch p {
	case PeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	case PeriodYear:
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC), nil
	case PeriodAll, "":
		return time.Time{}, nil
	default:
		return time.Time{}, apperr.Validation("period", "must be month, year or all, got %q", p)
	}
}

// activity selects owner's records that reflect income or spending.
// Opening balance records only seed account balances and are left out.
func activity(owner uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Model(&model.Expense{}).
			Where("owner_id = ? AND category <> ?", owner, expenses.OpeningCategory)
	}
}

func since(q *gorm.DB, column string, from time.Time) *gorm.DB {
	if from.IsZero() {
		return q
	}
	return q.Where(column+" >= ?", from)
}

// CategoryTotal is one row of a category breakdown.
type CategoryTotal struct {
	Category string
	Amount   decimal.Decimal
	Count    int
	Percent  float64 // share of the breakdown total, 2 decimals
}

// CategoryFilter narrows Categories. Type defaults to expense.
type CategoryFilter struct {
	Type model.EntryType
	From time.Time
	To   time.Time
}

// Categories breaks the records of one type down by category, largest
// amount first.
func (s *Service) Categories(ctx context.Context, owner uint, f CategoryFilter) ([]CategoryTotal, error) {
	if f.Type == "" {
		f.Type = model.EntryTypeExpense
	}
	if !f.Type.Valid() {
		return nil, apperr.Validation("type", "must be expense or income")
	}
	q := s.store.DB(ctx).Select("category", "amount").
		Scopes(activity(owner)).Where("type = ?", f.Type)
	if !f.From.IsZero() {
		q = q.Where("date >= ?", expenses.Day(f.From))
	}
	if !f.To.IsZero() {
		q = q.Where("date <= ?", expenses.Day(f.To))
	}
	var recs []model.Expense
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}

	byCat := map[string]*CategoryTotal{}
	grand := decimal.Zero
	for _, r := range recs {
		ct, ok := byCat[r.Category]
		if !ok {
			ct = &CategoryTotal{Category: r.Category, Amount: decimal.Zero}
			byCat[r.Category] = ct
		}
		ct.Amount = ct.Amount.Add(r.Amount)
		ct.Count++
		grand = grand.Add(r.Amount)
	}

	out := make([]CategoryTotal, 0, len(byCat))
	for _, ct := range byCat {
		if grand.IsPositive() {
			ct.Percent = ct.Amount.Div(grand).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
		}
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}
