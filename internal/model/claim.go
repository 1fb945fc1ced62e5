package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClaimStatus represents the lifecycle state of a reimbursement claim.
type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimApproved ClaimStatus = "approved"
	ClaimRejected ClaimStatus = "rejected"
	ClaimPaid     ClaimStatus = "paid"
)

// ClaimStatuses lists every status in lifecycle order.
var ClaimStatuses = []ClaimStatus{ClaimPending, ClaimApproved, ClaimRejected, ClaimPaid}

// Valid reports whether s is a known status.
func (s ClaimStatus) Valid() bool {
	for _, v := range ClaimStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Claim bundles reimbursable expenses. TotalAmount is always derived from
// the linked records.
type Claim struct {
	ID            uint            `gorm:"primaryKey"`
	OwnerID       uint            `gorm:"index;not null"`
	Title         string          `gorm:"size:200;not null"`
	Description   string          `gorm:"type:text"`
	TotalAmount   decimal.Decimal `gorm:"type:text;not null"`
	Status        ClaimStatus     `gorm:"size:20;index;not null"`
	SubmitDate    time.Time       `gorm:"index;not null"`
	ApproveDate   *time.Time
	ApproverNotes string `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Expenses []Expense `gorm:"-"`
}

// Editable reports whether the claim may still be changed or deleted.
func (c Claim) Editable() bool {
	return c.Status == ClaimPending
}
