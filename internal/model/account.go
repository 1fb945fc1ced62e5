package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies where the money of an account lives.
type AccountType string

const (
	AccountTypeCash       AccountType = "cash"
	AccountTypeBank       AccountType = "bank"
	AccountTypeCreditCard AccountType = "credit_card"
	AccountTypeAlipay     AccountType = "alipay"
	AccountTypeWechat     AccountType = "wechat"
	AccountTypeOther      AccountType = "other"
)

// AccountTypes lists every valid AccountType in display order.
var AccountTypes = []AccountType{
	AccountTypeCash,
	AccountTypeBank,
	AccountTypeCreditCard,
	AccountTypeAlipay,
	AccountTypeWechat,
	AccountTypeOther,
}

// Valid reports whether t is one of AccountTypes.
func (t AccountType) Valid() bool {
	for _, v := range AccountTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Account is a user-owned money container. Balance is written only by
// ledger.ApplyDelta.
type Account struct {
	ID          uint            `gorm:"primaryKey"`
	OwnerID     uint            `gorm:"not null;uniqueIndex:idx_account_owner_name,priority:1"`
	Name        string          `gorm:"size:100;not null;uniqueIndex:idx_account_owner_name,priority:2"`
	Type        AccountType     `gorm:"size:20;not null"`
	Balance     decimal.Decimal `gorm:"type:text;not null"`
	Description string          `gorm:"type:text"`
	Active      bool            `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
