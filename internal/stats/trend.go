package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/outlay-dev/outlay/internal/apperr"
	"github.com/outlay-dev/outlay/internal/expenses"
	"github.com/outlay-dev/outlay/internal/model"
)

// Granularity is the bucket size of a Trend.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
	GranularityYear  Granularity = "year"
)

// DefaultTrendMonths is how far back a Trend reaches when no start is given.
const DefaultTrendMonths = 12

func (g Granularity) layout() (string, bool) {
	switch g {
	case GranularityDay:
		return "2006-01-02", true
	case GranularityMonth, "":
		return "2006-01", true
	case GranularityYear:
		return "2006", true
	}
	return "", false
}

// TrendPoint is the income and expense of one bucket. Period is the
// bucket label: 2026-03-15, 2026-03 or 2026.
type TrendPoint struct {
	Period  string
	Income  decimal.Decimal
	Expense decimal.Decimal
	Net     decimal.Decimal
}

// Trend buckets owner's records dated from..to (inclusive) and returns the
// non-empty buckets in chronological order. A zero to means today; a zero
// from means DefaultTrendMonths before to.
func (s *Service) Trend(ctx context.Context, owner uint, g Granularity, from, to time.Time) ([]TrendPoint, error) {
	layout, ok := g.layout()
	if !ok {
		return nil, apperr.Validation("granularity", "must be day, month or year, got %q", g)
	}
	if to.IsZero() {
		to = s.now()
	}
	to = expenses.Day(to)
	if from.IsZero() {
		from = to.AddDate(0, -DefaultTrendMonths, 0)
	}
	from = expenses.Day(from)
	if from.After(to) {
		return nil, apperr.Validation("from", "must not be after %s", to.Format("2006-01-02"))
	}

	var recs []model.Expense
	err := s.store.DB(ctx).Select("date", "type", "amount").
		Scopes(activity(owner)).
		Where("date >= ? AND date <= ?", from, to).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}

	buckets := map[string]*TrendPoint{}
	for _, r := range recs {
		key := r.Date.UTC().Format(layout)
		p, ok := buckets[key]
		if !ok {
			p = &TrendPoint{Period: key, Income: decimal.Zero, Expense: decimal.Zero}
			buckets[key] = p
		}
		if r.Type == model.EntryTypeIncome {
			p.Income = p.Income.Add(r.Amount)
		} else {
			p.Expense = p.Expense.Add(r.Amount)
		}
	}

	out := make([]TrendPoint, 0, len(buckets))
	for _, p := range buckets {
		p.Net = p.Income.Sub(p.Expense)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

// AccountShare is one active account in an account breakdown.
type AccountShare struct {
	ID      uint
	Name    string
	Type    model.AccountType
	Balance decimal.Decimal
	Records int64
	Percent float64 // share of the summed balance, 2 decimals; 0 when the sum is 0
}

// Accounts lists owner's active accounts by balance, largest first, with
// their record counts and share of the total balance.
func (s *Service) Accounts(ctx context.Context, owner uint) ([]AccountShare, decimal.Decimal, error) {
	db := s.store.DB(ctx)

	var accts []model.Account
	if err := db.Where("owner_id = ? AND active = ?", owner, true).Find(&accts).Error; err != nil {
		return nil, decimal.Zero, fmt.Errorf("loading accounts: %w", err)
	}

	var counts []struct {
		AccountID uint
		N         int64
	}
	err := db.Select("account_id", "COUNT(*) AS n").
		Scopes(activity(owner)).
		Group("account_id").
		Scan(&counts).Error
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("counting records: %w", err)
	}
	byAccount := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byAccount[c.AccountID] = c.N
	}

	total := decimal.Zero
	out := make([]AccountShare, 0, len(accts))
	for _, a := range accts {
		total = total.Add(a.Balance)
		out = append(out, AccountShare{ID: a.ID, Name: a.Name, Type: a.Type, Balance: a.Balance, Records: byAccount[a.ID]})
	}
	if !total.IsZero() {
		for i := range out {
			out[i].Percent = out[i].Balance.Div(total).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Balance.GreaterThan(out[j].Balance) })
	return out, total, nil
}

// MonthSummary is the activity of one calendar month.
type MonthSummary struct {
	Year       int
	Month      time.Month
	Income     decimal.Decimal
	Expense    decimal.Decimal
	Net        decimal.Decimal
	Categories []CategoryTotal // expense categories
	Days       []TrendPoint    // days with activity
}

// Month summarizes one calendar month. A zero year or month means the
// current one.
func (s *Service) Month(ctx context.Context, owner uint, year int, month time.Month) (MonthSummary, error) {
	now := s.now().UTC()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = now.Month()
	}
	if month < time.January || month > time.December {
		return MonthSummary{}, apperr.Validation("month", "must be 1-12, got %d", month)
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	days, err := s.Trend(ctx, owner, GranularityDay, first, last)
	if err != nil {
		return MonthSummary{}, err
	}
	cats, err := s.Categories(ctx, owner, CategoryFilter{Type: model.EntryTypeExpense, From: first, To: last})
	if err != nil {
		return MonthSummary{}, err
	}

	out := MonthSummary{Year: year, Month: month, Income: decimal.Zero, Expense: decimal.Zero, Categories: cats, Days: days}
	for _, d := range days {
		out.Income = out.Income.Add(d.Income)
		out.Expense = out.Expense.Add(d.Expense)
	}
	out.Net = out.Income.Sub(out.Expense)
	return out, nil
}
