package expenses

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/outlay-dev/outlay/internal/model"
)

// CountClaimable counts the ids that belong to owner, are reimbursable and
// are on no claim.
func CountClaimable(tx *gorm.DB, owner uint, ids []uint) (int64, error) {
	var n int64
	err := tx.Model(&model.Expense{}).
		Where("id IN ? AND owner_id = ? AND reimbursable = ? AND claim_id IS NULL", ids, owner, true).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("counting claimable records: %w", err)
	}
	return n, nil
}

// Link attaches the records to claimID.
func Link(tx *gorm.DB, claimID uint, ids []uint) error {
	err := tx.Model(&model.Expense{}).Where("id IN ?", ids).Update("claim_id", claimID).Error
	if err != nil {
		return fmt.Errorf("linking records to claim %d: %w", claimID, err)
	}
	return nil
}

// Unlink detaches every record of claimID.
func Unlink(tx *gorm.DB, claimID uint) error {
	err := tx.Model(&model.Expense{}).Where("claim_id = ?", claimID).Update("claim_id", nil).Error
	if err != nil {
		return fmt.Errorf("unlinking records of claim %d: %w", claimID, err)
	}
	return nil
}

// ByClaim returns the records linked to claimID, newest first.
func ByClaim(db *gorm.DB, claimID uint) ([]model.Expense, error) {
	var recs []model.Expense
	err := db.Where("claim_id = ?", claimID).
		Order("date DESC").Order("created_at DESC").Order("id DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("loading records of claim %d: %w", claimID, err)
	}
	return recs, nil
}

// RecomputeClaimTotal sets the claim's total to the sum of its records'
// amounts and returns it.
func RecomputeClaimTotal(tx *gorm.DB, claimID uint) (decimal.Decimal, error) {
	var recs []model.Expense
	if err := tx.Select("amount").Where("claim_id = ?", claimID).Find(&recs).Error; err != nil {
		return decimal.Zero, fmt.Errorf("summing claim %d: %w", claimID, err)
	}
	total := decimal.Zero
	for _, r := range recs {
		total = total.Add(r.Amount)
	}
	err := tx.Model(&model.Claim{}).Where("id = ?", claimID).Update("total_amount", total).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("writing total of claim %d: %w", claimID, err)
	}
	return total, nil
}
