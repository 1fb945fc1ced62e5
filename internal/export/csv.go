// Package export reads and writes expense records in the outlay CSV format.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/outlay-dev/outlay/internal/model"
)

// Header is the CSV header of an outlay export.
const Header = "id,date,account_id,type,amount,category,subcategory,description,tags,reimbursable,claim_id,receipt_url,reference"

const (
	numFields      = 13
	dateFormat     = "2006-01-02"
	tagSep         = ";"
	colID          = 0
	colDate        = 1
	colAcctID      = 2
	colType        = 3
	colAmount      = 4
	colCategory    = 5
	colSubcategory = 6
	colDesc        = 7
	colTags        = 8
	colReimb       = 9
	colClaimID     = 10
	colReceipt     = 11
	colReference   = 12
)

// ReadRecords reads every record from an outlay CSV.
func ReadRecords(r io.Reader) ([]model.Expense, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading outlay CSV: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	var recs []model.Expense
	for i, row := range rows[1:] {
		rec, err := UnmarshalRecord(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// WriteRecords writes records, header first.
func WriteRecords(w io.Writer, recs []model.Expense) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, rec := range recs {
		if err := cw.Write(MarshalRecord(rec)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalRecord converts a record to a CSV row.
func MarshalRecord(rec model.Expense) []string {
	row := make([]string, numFields)
	if rec.ID != 0 {
		row[colID] = strconv.FormatUint(uint64(rec.ID), 10)
	}
	row[colDate] = rec.Date.Format(dateFormat)
	row[colAcctID] = strconv.FormatUint(uint64(rec.AccountID), 10)
	row[colType] = string(rec.Type)
	row[colAmount] = rec.Amount.StringFixed(2)
	row[colCategory] = rec.Category
	row[colSubcategory] = rec.Subcategory
	row[colDesc] = rec.Description
	row[colTags] = strings.Join(rec.TagList(), tagSep)
	row[colReimb] = strconv.FormatBool(rec.Reimbursable)
	if rec.ClaimID != nil {
		row[colClaimID] = strconv.FormatUint(uint64(*rec.ClaimID), 10)
	}
	row[colReceipt] = rec.ReceiptURL
	row[colReference] = rec.Reference
	return row
}

// UnmarshalRecord converts a CSV row to a record. Owner and timestamps are
// left zero.
func UnmarshalRecord(row []string) (model.Expense, error) {
	if len(row) != numFields {
		return model.Expense{}, fmt.Errorf("expected %d fields, got %d", numFields, len(row))
	}

	var rec model.Expense
	var err error
	if rec.ID, err = parseID(row[colID], "id"); err != nil {
		return model.Expense{}, err
	}
	if rec.Date, err = time.Parse(dateFormat, row[colDate]); err != nil {
		return model.Expense{}, fmt.Errorf("parsing date %q: %w", row[colDate], err)
	}
	if rec.AccountID, err = parseID(row[colAcctID], "account_id"); err != nil {
		return model.Expense{}, err
	}
	rec.Type = model.EntryType(row[colType])
	if !rec.Type.Valid() {
		return model.Expense{}, fmt.Errorf("unknown type %q", row[colType])
	}
	if rec.Amount, err = decimal.NewFromString(row[colAmount]); err != nil {
		return model.Expense{}, fmt.Errorf("parsing amount %q: %w", row[colAmount], err)
	}
	rec.Category = row[colCategory]
	rec.Subcategory = row[colSubcategory]
	rec.Description = row[colDesc]
	rec.Tags = model.JoinTags(strings.Split(row[colTags], tagSep))
	if row[colReimb] != "" {
		if rec.Reimbursable, err = strconv.ParseBool(row[colReimb]); err != nil {
			return model.Expense{}, fmt.Errorf("parsing reimbursable %q: %w", row[colReimb], err)
		}
	}
	if row[colClaimID] != "" {
		claimID, err := parseID(row[colClaimID], "claim_id")
		if err != nil {
			return model.Expense{}, err
		}
		rec.ClaimID = &claimID
	}
	rec.ReceiptURL = row[colReceipt]
	rec.Reference = row[colReference]
	return rec, nil
}

func parseID(s, field string) (uint, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return 0, fmt.Errorf("parsing %s %q: %w", field, s, err)
	}
	return uint(n), nil
}
