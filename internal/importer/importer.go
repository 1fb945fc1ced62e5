// Package importer turns bank CSV exports into expense and income records.
package importer

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/outlay-dev/outlay/internal/model"
)

// Parser converts one file format into BankTransactions. Amounts follow
// the bank convention: negative leaves the account, positive enters it.
type Parser interface {
	Parse(r io.Reader) ([]model.BankTransaction, error)
	Format() string
}

// RecordParser is implemented by formats that carry whole records rather
// than bank rows. Import prefers ParseRecords when it is available.
type RecordParser interface {
	Parser
	ParseRecords(r io.Reader) ([]model.Expense, error)
}

// Registry holds parsers keyed by lowercased format name.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: map[string]Parser{}}
}

// Register adds a parser. Registering a format twice is a programming
// error and panics.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, dup := r.parsers[key]; dup {
		panic(fmt.Sprintf("importer: format %q registered twice", key))
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// Formats lists the registered format names in sorted order.
func (r *Registry) Formats() []string {
	keys := make([]string, 0, len(r.parsers))
	for k := range r.parsers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	r.Register(&OutlayParser{})
	return r
}

// InboxFile is a CSV waiting in an import directory.
type InboxFile struct {
	Name string
	Path string
	Size int64
}

const processedDir = "processed"

// Scan lists the CSV files directly inside dir, sorted by name.
// Subdirectories, processed/ included, are not descended into. A missing
// dir has no files.
func Scan(dir string) ([]InboxFile, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading import dir %s: %w", dir, err)
	}

	var files []InboxFile
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, InboxFile{Name: e.Name(), Path: filepath.Join(dir, e.Name()), Size: info.Size()})
	}
	return files, nil
}

// MarkProcessed moves dir/name into dir/processed. An earlier file of the
// same name is kept and the new one gets a numeric suffix.
func MarkProcessed(dir, name string) error {
	dstDir := filepath.Join(dir, processedDir)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, name)
	ext := filepath.Ext(name)
	for n := 1; ; n++ {
		if _, err := os.Stat(dst); errors.Is(err, fs.ErrNotExist) {
			break
		}
		dst = filepath.Join(dstDir, fmt.Sprintf("%s.%d%s", strings.TrimSuffix(name, ext), n, ext))
	}
	if err := os.Rename(filepath.Join(dir, name), dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", name, err)
	}
	return nil
}
