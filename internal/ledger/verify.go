package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/outlay-dev/outlay/internal/logging"
	"github.com/outlay-dev/outlay/internal/model"
)

// Discrepancy describes an account whose stored balance differs from the
// sum of its records' contributions.
type Discrepancy struct {
	AccountID uint
	Name      string
	Stored    decimal.Decimal
	Computed  decimal.Decimal
}

func (d Discrepancy) Error() string {
	return fmt.Sprintf("account %d [%s]: stored balance %s != computed %s",
		d.AccountID, d.Name, d.Stored.StringFixed(2), d.Computed.StringFixed(2))
}

// Verify recomputes every balance of owner from the records and reports the
// accounts that disagree. An empty result means the ledger is consistent.
func (s *Service) Verify(ctx context.Context, owner uint) ([]Discrepancy, error) {
	db := s.store.DB(ctx)

	var accts []model.Account
	if err := db.Where("owner_id = ?", owner).Order("id").Find(&accts).Error; err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}
	var records []model.Expense
	err := db.Select("account_id", "amount", "type").Where("owner_id = ?", owner).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}

	computed := make(map[uint]decimal.Decimal, len(accts))
	for _, r := range records {
		computed[r.AccountID] = computed[r.AccountID].Add(r.Contribution())
	}

	var out []Discrepancy
	for _, a := range accts {
		sum := computed[a.ID]
		if !a.Balance.Equal(sum) {
			out = append(out, Discrepancy{AccountID: a.ID, Name: a.Name, Stored: a.Balance, Computed: sum})
		}
	}
	if len(out) > 0 {
		s.log.Warn("ledger inconsistent", zap.Uint(logging.FieldOwner, owner), zap.Int("accounts", len(out)))
	}
	return out, nil
}
