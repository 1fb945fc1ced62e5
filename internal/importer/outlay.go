package importer

import (
	"fmt"
	"io"

	"github.com/outlay-dev/outlay/internal/export"
	"github.com/outlay-dev/outlay/internal/model"
)

// OutlayParser reads files written by `outlay expense export`, so records
// can be moved between accounts or databases.
type OutlayParser struct{}

// Format returns the parser name.
func (p *OutlayParser) Format() string { return "outlay" }

// ParseRecords reads an outlay CSV. Each record keeps its reference; one
// without a reference gets outlay_<id> so a re-import is recognised.
func (p *OutlayParser) ParseRecords(r io.Reader) ([]model.Expense, error) {
	recs, err := export.ReadRecords(r)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if recs[i].Reference == "" && recs[i].ID != 0 {
			recs[i].Reference = fmt.Sprintf("outlay_%d", recs[i].ID)
		}
	}
	return recs, nil
}

// Parse reduces the records to bank rows. Income stays positive and
// expenses become negative, matching the bank sign convention.
func (p *OutlayParser) Parse(r io.Reader) ([]model.BankTransaction, error) {
	recs, err := p.ParseRecords(r)
	if err != nil {
		return nil, err
	}
	var txns []model.BankTransaction
	for _, rec := range recs {
		txns = append(txns, model.BankTransaction{
			Date:        rec.Date,
			Description: rec.Description,
			Amount:      rec.Contribution(),
			Category:    rec.Category,
			Reference:   rec.Reference,
		})
	}
	return txns, nil
}
