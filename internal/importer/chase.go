package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/outlay-dev/outlay/internal/model"
)

// ChaseParser parses Chase CSV exports. Both the checking layout
// (Details,Posting Date,...,Check or Slip #) and the card layout
// (Transaction Date,Post Date,...,Category,Memo) are recognised by header.
type ChaseParser struct{}

const chaseDateFormat = "01/02/2006"

// Header aliases, lowercased. The first match wins.
var (
	chaseDateCols   = []string{"posting date", "post date", "transaction date"}
	chaseDescCols   = []string{"description"}
	chaseAmountCols = []string{"amount"}
	chaseTypeCols   = []string{"type"}
	chaseCatCols    = []string{"category"}
	chaseRefCols    = []string{"check or slip #"}
)

// chaseCategories maps checking transaction types onto record categories.
var chaseCategories = map[string]string{
	"ACH_CREDIT":      "transfer",
	"ACH_DEBIT":       "bills",
	"ATM":             "cash",
	"CHECK_DEPOSIT":   "deposit",
	"CHECK_PAID":      "bills",
	"DEBIT_CARD":      "shopping",
	"FEE_TRANSACTION": "fees",
}

type chaseColumns struct {
	date, desc, amount, typ, category, ref int
}

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Parse reads a Chase CSV and returns BankTransactions in file order.
func (p *ChaseParser) Parse(r io.Reader) ([]model.BankTransaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading chase header: %w", err)
	}
	cols, err := chaseLayout(header)
	if err != nil {
		return nil, err
	}

	var txns []model.BankTransaction
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return txns, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading chase CSV: %w", err)
		}
		if len(rec) < len(header) {
			return nil, fmt.Errorf("row %d: want %d fields, got %d", line, len(header), len(rec))
		}
		txn, err := cols.parse(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		txns = append(txns, txn)
	}
}

func chaseLayout(header []string) (chaseColumns, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	find := func(names []string) int {
		for _, n := range names {
			if i, ok := idx[n]; ok {
				return i
			}
		}
		return -1
	}

	cols := chaseColumns{
		date:     find(chaseDateCols),
		desc:     find(chaseDescCols),
		amount:   find(chaseAmountCols),
		typ:      find(chaseTypeCols),
		category: find(chaseCatCols),
		ref:      find(chaseRefCols),
	}
	switch {
	case cols.date < 0:
		return cols, errors.New("chase header has no date column")
	case cols.desc < 0:
		return cols, errors.New("chase header has no description column")
	case cols.amount < 0:
		return cols, errors.New("chase header has no amount column")
	}
	return cols, nil
}

func (c chaseColumns) parse(rec []string) (model.BankTransaction, error) {
	date, err := time.Parse(chaseDateFormat, strings.TrimSpace(rec[c.date]))
	if err != nil {
		return model.BankTransaction{}, fmt.Errorf("parsing date %q: %w", rec[c.date], err)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(rec[c.amount]))
	if err != nil {
		return model.BankTransaction{}, fmt.Errorf("parsing amount %q: %w", rec[c.amount], err)
	}

	desc := strings.TrimSpace(rec[c.desc])
	txn := model.BankTransaction{
		Date:        date,
		Description: desc,
		Amount:      amount,
		Reference:   chaseRef(date, desc),
	}
	if c.category >= 0 {
		txn.Category = strings.ToLower(strings.TrimSpace(rec[c.category]))
	}
	if txn.Category == "" && c.typ >= 0 {
		txn.Category = chaseCategories[strings.TrimSpace(rec[c.typ])]
	}
	if c.ref >= 0 {
		if n := strings.TrimSpace(rec[c.ref]); n != "" {
			txn.Reference = "chase_check_" + n
		}
	}
	return txn, nil
}

// chaseRef builds a reference like chase_20250103_GITHUBPROS from the date
// and the first ten alphanumerics of the description.
func chaseRef(date time.Time, desc string) string {
	var b strings.Builder
	for _, r := range desc {
		if b.Len() == 10 {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return "chase_" + date.Format("20060102") + "_" + b.String()
}
