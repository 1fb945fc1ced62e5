// Package store owns the SQLite connection and the transaction boundary
// every mutating operation runs inside.
package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/outlay-dev/outlay/internal/config"
	"github.com/outlay-dev/outlay/internal/model"
)

// Store wraps the gorm handle.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open creates the database file if needed, connects and migrates the schema.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormLogger := logger.Default
	if !cfg.LogQueries {
		gormLogger = gormLogger.LogMode(logger.Silent)
	}

	db, err := gorm.Open(sqlite.Open(dsn(cfg)), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db: %w", err)
	}
	// SQLite allows one writer; a single connection keeps BEGIN IMMEDIATE
	// from contending with itself.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// dsn builds the mattn/go-sqlite3 connection string. _txlock=immediate takes
// the write lock at BEGIN so read-check-write sequences are serialized.
func dsn(cfg config.DatabaseConfig) string {
	q := url.Values{}
	q.Set("_txlock", "immediate")
	q.Set("_foreign_keys", "on")
	q.Set("_journal_mode", "WAL")
	q.Set("_busy_timeout", strconv.Itoa(cfg.BusyTimeoutMS))
	return cfg.Path + "?" + q.Encode()
}

func (s *Store) migrate() error {
	if err := s.db.AutoMigrate(
		&model.Account{},
		&model.Expense{},
		&model.Claim{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// DB returns a handle for read-only queries bound to ctx.
func (s *Store) DB(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// Atomic runs fn inside one transaction. Any error returned by fn, or a
// panic, rolls back every write fn made.
func (s *Store) Atomic(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := s.db.WithContext(ctx).Transaction(fn)
	if err != nil {
		s.log.Debug("transaction rolled back", zap.Error(err))
	}
	return err
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting sql db: %w", err)
	}
	return sqlDB.Close()
}

// IsUniqueViolation reports whether err came from a unique index.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsNotFound reports whether err is gorm's record-not-found.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Contains returns a LIKE pattern matching s as a literal substring. Use it
// with `LIKE ? ESCAPE '\'`.
func Contains(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// Paginate applies LIMIT/OFFSET for a 1-based page.
func Paginate(page, perPage int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if page < 1 {
			page = 1
		}
		if perPage < 1 {
			return db
		}
		return db.Offset((page - 1) * perPage).Limit(perPage)
	}
}

// Pagination is the page metadata listings report alongside their items.
type Pagination struct {
	Page    int
	PerPage int
	Total   int64
	Pages   int
	HasNext bool
	HasPrev bool
}

// NewPagination derives page counts from a total row count.
func NewPagination(page, perPage int, total int64) Pagination {
	if page < 1 {
		page = 1
	}
	p := Pagination{Page: page, PerPage: perPage, Total: total}
	if perPage > 0 {
		p.Pages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	p.HasPrev = page > 1
	p.HasNext = page < p.Pages
	return p
}
