package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankTransaction represents a parsed bank CSV row.
type BankTransaction struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal // negative = expense, positive = income
	Category    string          // empty when the format carries none
	Reference   string
}

// EntryType maps the bank sign convention onto a record type.
func (t BankTransaction) EntryType() EntryType {
	if t.Amount.IsNegative() {
		return EntryTypeExpense
	}
	return EntryTypeIncome
}
