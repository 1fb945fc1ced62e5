// Package ledger holds account balances. ApplyDelta is the only code path
// that writes Account.Balance; every caller passes the transaction of the
// expense mutation that caused the change.
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/outlay-dev/outlay/internal/apperr"
	"github.com/outlay-dev/outlay/internal/model"
	"github.com/outlay-dev/outlay/internal/store"
)

// ApplyDelta adds signed to the balance of accountID within tx. The new
// balance is visible to later reads in the same transaction.
func ApplyDelta(tx *gorm.DB, accountID uint, signed decimal.Decimal) error {
	if signed.IsZero() {
		return nil
	}
	var acct model.Account
	if err := tx.Select("id", "balance").First(&acct, accountID).Error; err != nil {
		if store.IsNotFound(err) {
			return apperr.NotFound("account", accountID)
		}
		return fmt.Errorf("reading balance of account %d: %w", accountID, err)
	}
	balance := acct.Balance.Add(signed)
	res := tx.Model(&model.Account{}).Where("id = ?", accountID).Update("balance", balance)
	if res.Error != nil {
		return fmt.Errorf("writing balance of account %d: %w", accountID, res.Error)
	}
	return nil
}

// Lookup loads an account owned by owner. Absent and foreign accounts are
// both NotFound.
func Lookup(db *gorm.DB, owner, accountID uint) (model.Account, error) {
	var acct model.Account
	err := db.Where("id = ? AND owner_id = ?", accountID, owner).First(&acct).Error
	if err != nil {
		if store.IsNotFound(err) {
			return model.Account{}, apperr.NotFound("account", accountID)
		}
		return model.Account{}, fmt.Errorf("loading account %d: %w", accountID, err)
	}
	return acct, nil
}
