package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EntryType says which way a record moves its account balance.
type EntryType string

const (
	EntryTypeExpense EntryType = "expense"
	EntryTypeIncome  EntryType = "income"
)

// Valid reports whether t is expense or income.
func (t EntryType) Valid() bool {
	return t == EntryTypeExpense || t == EntryTypeIncome
}

// Expense is a single expense or income record. The table keeps the
// "expenses" name for both kinds.
type Expense struct {
	ID           uint            `gorm:"primaryKey"`
	OwnerID      uint            `gorm:"index;uniqueIndex:idx_expense_reference,priority:1;not null"`
	AccountID    uint            `gorm:"index;uniqueIndex:idx_expense_reference,priority:2;not null"`
	Amount       decimal.Decimal `gorm:"type:text;not null"`
	Type         EntryType       `gorm:"size:16;index;not null"`
	Category     string          `gorm:"size:50;index;not null"`
	Subcategory  string          `gorm:"size:50"`
	Description  string          `gorm:"type:text"`
	Date         time.Time       `gorm:"index;not null"`
	Tags         string          `gorm:"size:200"` // comma-separated
	ReceiptURL   string          `gorm:"size:255"`
	Reimbursable bool            `gorm:"index;not null"`
	ClaimID      *uint           `gorm:"index"`
	Reference    string          `gorm:"size:120;uniqueIndex:idx_expense_reference,priority:3,where:reference <> ''"` // source row id of imported records
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Contribution returns the signed amount the record adds to its account:
// -Amount for an expense, +Amount for income.
func (e Expense) Contribution() decimal.Decimal {
	return SignedAmount(e.Type, e.Amount)
}

// SignedAmount applies the sign convention of t to amount.
func SignedAmount(t EntryType, amount decimal.Decimal) decimal.Decimal {
	if t == EntryTypeIncome {
		return amount
	}
	return amount.Neg()
}

// Claimed reports whether the record is linked to a claim.
func (e Expense) Claimed() bool {
	return e.ClaimID != nil
}

// TagList splits the stored tags.
func (e Expense) TagList() []string {
	if e.Tags == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(e.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// JoinTags is the inverse of TagList.
func JoinTags(tags []string) string {
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	return strings.Join(clean, ",")
}
