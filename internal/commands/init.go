package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/outlay-dev/outlay/internal/config"
	"github.com/outlay-dev/outlay/internal/logging"
	"github.com/outlay-dev/outlay/internal/store"
)

func newInitCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a config file and an empty ledger database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd, absDir, dbPath)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "database path relative to the directory (default data/outlay.db)")

	return cmd
}

func runInit(cmd *cobra.Command, dir, dbPath string) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	for _, d := range []string{"data", "import", filepath.Join("import", "processed")} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	cfg := config.Default()
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Create the schema now so the first real command starts on a migrated file.
	dbCfg := cfg.Database
	if !filepath.IsAbs(dbCfg.Path) {
		dbCfg.Path = filepath.Join(dir, dbCfg.Path)
	}
	st, err := store.Open(dbCfg, logging.Nop())
	if err != nil {
		return err
	}
	if err := st.Close(); err != nil {
		return err
	}

	gitignore := "data/\n.env\nimport/processed/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized outlay ledger at %s (database %s)\n", dir, dbCfg.Path)
	return nil
}
