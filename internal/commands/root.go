package commands

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/outlay-dev/outlay/internal/apperr"
	"github.com/outlay-dev/outlay/internal/buildinfo"
	"github.com/outlay-dev/outlay/internal/claims"
	"github.com/outlay-dev/outlay/internal/config"
	"github.com/outlay-dev/outlay/internal/expenses"
	"github.com/outlay-dev/outlay/internal/importer"
	"github.com/outlay-dev/outlay/internal/ledger"
	"github.com/outlay-dev/outlay/internal/logging"
	"github.com/outlay-dev/outlay/internal/stats"
	"github.com/outlay-dev/outlay/internal/store"
)

// app carries the services one command invocation works with.
type app struct {
	cfgPath string
	envPath string
	user    uint
	now     expenses.Clock

	cfg      *config.Config
	log      *zap.Logger
	store    *store.Store
	ledger   *ledger.Service
	engine   *expenses.Engine
	claims   *claims.Manager
	stats    *stats.Service
	importer *importer.Service
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{now: time.Now}

	rootCmd := &cobra.Command{
		Use:     "outlay",
		Short:   "Personal expense and reimbursement ledger",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", config.FileName, "config file")
	pf.StringVar(&a.envPath, "env-file", ".env", "dotenv file loaded before the config")
	pf.UintVar(&a.user, "user", 1, "owner id of the authenticated user")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(a.group(newAccountCommand(a)))
	rootCmd.AddCommand(a.group(newExpenseCommand(a)))
	rootCmd.AddCommand(a.group(newClaimCommand(a)))
	rootCmd.AddCommand(a.group(newStatsCommand(a)))

	return rootCmd
}

// ExitCode maps err to the process exit status: 2 for validation errors,
// 3 not found, 4 conflict, 5 invalid state and 1 for anything else.
func ExitCode(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return 2
	case apperr.KindNotFound:
		return 3
	case apperr.KindConflict:
		return 4
	case apperr.KindInvalidState:
		return 5
	}
	return 1
}

// group wires opening and closing the ledger around every subcommand of cmd.
func (a *app) group(cmd *cobra.Command) *cobra.Command {
	cmd.PersistentPreRunE = func(*cobra.Command, []string) error { return a.open() }
	cmd.PersistentPostRunE = func(*cobra.Command, []string) error { return a.close() }
	return cmd
}

// loadConfig reads the config file, falling back to defaults plus
// environment overrides when it does not exist.
func (a *app) loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(a.envPath); err != nil {
		return nil, err
	}
	cfg, err := config.Load(a.cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
		cfg.ApplyEnv()
		err = cfg.Validate()
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *app) open() error {
	if a.user == 0 {
		return errors.New("--user must be a positive owner id")
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Database, log)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log.With(zap.Uint(logging.FieldOwner, a.user))
	a.store = st
	a.engine = expenses.NewEngine(st, a.now, a.log)
	a.ledger = ledger.NewService(st, a.engine, a.log)
	a.claims = claims.NewManager(st, a.engine, a.now, a.log)
	a.stats = stats.NewService(st, a.now)
	a.importer = importer.NewService(a.engine, importer.DefaultRegistry(), a.log)
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	_ = a.log.Sync()
	err := a.store.Close()
	a.store = nil
	return err
}

// perPage clamps a requested page size to the configured bounds.
func (a *app) perPage(requested int) int {
	if requested < 1 {
		return a.cfg.List.PerPage
	}
	if requested > a.cfg.List.MaxPerPage {
		return a.cfg.List.MaxPerPage
	}
	return requested
}
