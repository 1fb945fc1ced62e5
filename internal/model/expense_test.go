package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestContribution(t *testing.T) {
	tests := []struct {
		typ  EntryType
		amt  string
		want string
	}{
		{EntryTypeExpense, "100.00", "-100.00"},
		{EntryTypeIncome, "100.00", "100.00"},
		{EntryTypeExpense, "0.01", "-0.01"},
	}
	for _, tt := range tests {
		e := Expense{Type: tt.typ, Amount: decimal.RequireFromString(tt.amt)}
		assert.Equal(t, tt.want, e.Contribution().StringFixed(2), "Contribution(%s %s)", tt.typ, tt.amt)
	}
}

func TestTagList(t *testing.T) {
	e := Expense{Tags: "work, travel,,  taxi "}
	assert.Equal(t, []string{"work", "travel", "taxi"}, e.TagList())
	assert.Nil(t, Expense{}.TagList())
	assert.Equal(t, "work,travel", JoinTags([]string{" work", "", "travel "}))
}

func TestEnums(t *testing.T) {
	assert.True(t, AccountTypeWechat.Valid())
	assert.False(t, AccountType("savings").Valid())
	assert.True(t, EntryTypeIncome.Valid())
	assert.False(t, EntryType("transfer").Valid())
	assert.True(t, ClaimPaid.Valid())
	assert.False(t, ClaimStatus("draft").Valid())

	assert.True(t, Claim{Status: ClaimPending}.Editable())
	assert.False(t, Claim{Status: ClaimApproved}.Editable())
}

func TestBankTransactionEntryType(t *testing.T) {
	assert.Equal(t, EntryTypeExpense, BankTransaction{Amount: decimal.RequireFromString("-4.00")}.EntryType())
	assert.Equal(t, EntryTypeIncome, BankTransaction{Amount: decimal.RequireFromString("3500")}.EntryType())
}
