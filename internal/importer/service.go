package importer

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/outlay-dev/outlay/internal/apperr"
	"github.com/outlay-dev/outlay/internal/expenses"
	"github.com/outlay-dev/outlay/internal/logging"
)

// DefaultCategory is used for rows whose format carries no category.
const DefaultCategory = "uncategorized"

// Service books parsed bank rows through the expense engine.
type Service struct {
	engine   *expenses.Engine
	registry *Registry
	log      *zap.Logger
}

// NewService creates an import Service.
func NewService(engine *expenses.Engine, registry *Registry, log *zap.Logger) *Service {
	return &Service{engine: engine, registry: registry, log: log.Named("importer")}
}

// Result reports one imported file.
type Result struct {
	File     string
	Imported int
	Skipped  int // zero-amount rows and rows whose reference is already booked
}

// Import parses r with format and books every row on accountID in a single
// transaction. A bad row rejects the whole file. Rows already booked from an
// earlier import of the same data are skipped, so importing a file twice
// books it once.
func (s *Service) Import(ctx context.Context, owner, accountID uint, format string, r io.Reader) (Result, error) {
	p := s.registry.Get(format)
	if p == nil {
		return Result{}, apperr.Validation("format", "unknown import format %q", format)
	}

	var (
		res   Result
		batch []expenses.CreateParams
		err   error
	)
	if rp, ok := p.(RecordParser); ok {
		batch, err = recordBatch(rp, r, accountID)
	} else {
		batch, res.Skipped, err = bankBatch(p, r, accountID)
	}
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindValidation, "file", err)
	}
	uniqueReferences(batch)

	if len(batch) > 0 {
		recs, skipped, err := s.engine.ImportBatch(ctx, owner, batch)
		if err != nil {
			return Result{}, err
		}
		res.Imported = len(recs)
		res.Skipped += skipped
	}
	return res, nil
}

// bankBatch turns bank rows into records tagged with the format name.
// Zero-amount rows are dropped and counted.
func bankBatch(p Parser, r io.Reader, accountID uint) ([]expenses.CreateParams, int, error) {
	txns, err := p.Parse(r)
	if err != nil {
		return nil, 0, err
	}
	zero := 0
	batch := make([]expenses.CreateParams, 0, len(txns))
	for _, txn := range txns {
		if txn.Amount.IsZero() {
			zero++
			continue
		}
		category := txn.Category
		if category == "" {
			category = DefaultCategory
		}
		batch = append(batch, expenses.CreateParams{
			AccountID:   accountID,
			Amount:      txn.Amount.Abs(),
			Type:        txn.EntryType(),
			Category:    category,
			Description: txn.Description,
			Date:        txn.Date,
			Tags:        []string{"import:" + p.Format()},
			Reference:   txn.Reference,
		})
	}
	return batch, zero, nil
}

// recordBatch copies full records onto accountID. Claim links are not
// carried over: imported records start unclaimed.
func recordBatch(p RecordParser, r io.Reader, accountID uint) ([]expenses.CreateParams, error) {
	recs, err := p.ParseRecords(r)
	if err != nil {
		return nil, err
	}
	batch := make([]expenses.CreateParams, 0, len(recs))
	for _, rec := range recs {
		batch = append(batch, expenses.CreateParams{
			AccountID:    accountID,
			Amount:       rec.Amount,
			Type:         rec.Type,
			Category:     rec.Category,
			Subcategory:  rec.Subcategory,
			Description:  rec.Description,
			Date:         rec.Date,
			Tags:         rec.TagList(),
			ReceiptURL:   rec.ReceiptURL,
			Reimbursable: rec.Reimbursable,
			Reference:    rec.Reference,
		})
	}
	return batch, nil
}

// uniqueReferences suffixes repeated references within one file (two
// same-day rows with the same description) with #2, #3 and so on. The
// numbering follows file order, so re-importing the file yields the same
// references.
func uniqueReferences(batch []expenses.CreateParams) {
	seen := map[string]int{}
	for i := range batch {
		ref := batch[i].Reference
		if ref == "" {
			continue
		}
		seen[ref]++
		if n := seen[ref]; n > 1 {
			batch[i].Reference = fmt.Sprintf("%s#%d", ref, n)
		}
	}
}

// ImportFile imports one file.
func (s *Service) ImportFile(ctx context.Context, owner, accountID uint, format, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	res, err := s.Import(ctx, owner, accountID, format, f)
	if err != nil {
		return Result{}, fmt.Errorf("importing %s: %w", path, err)
	}
	res.File = path
	s.log.Info("file imported",
		zap.Uint(logging.FieldOwner, owner),
		zap.Uint(logging.FieldAccount, accountID),
		zap.String("file", path),
		zap.Int("imported", res.Imported),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// ImportDir imports every CSV in dir and moves each one to dir/processed
// once booked. It stops at the first file that fails; files before it stay
// imported.
func (s *Service) ImportDir(ctx context.Context, owner, accountID uint, format, dir string) ([]Result, error) {
	files, err := Scan(dir)
	if err != nil {
		return nil, err
	}
	var out []Result
	for _, f := range files {
		res, err := s.ImportFile(ctx, owner, accountID, format, f.Path)
		if err != nil {
			return out, err
		}
		res.File = f.Name
		if err := MarkProcessed(dir, f.Name); err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}
