package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/utsbot/uts-chatbot-go/internal/backup"
	"github.com/utsbot/uts-chatbot-go/internal/buildinfo"
	"github.com/utsbot/uts-chatbot-go/internal/config"
	domerrors "github.com/utsbot/uts-chatbot-go/internal/errors"
	"github.com/utsbot/uts-chatbot-go/internal/logger"
	"github.com/utsbot/uts-chatbot-go/internal/storage"
)

// cli carries state shared by subcommands. Config and the database are
// opened on first use so commands like version work without either.
type cli struct {
	dataDir  string
	logLevel string

	cfg *config.Config
	log *logger.Logger
	db  *storage.DB
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "kbctl",
		Short: "Manage the chatbot knowledge base and database backups",
		Long: `kbctl imports and exports the knowledge base as YAML, runs retrieval
queries against it, and takes, lists and restores R2 backups of the SQLite
database. Settings are read from the same UTS_* environment variables as the
server (a .env file is honored).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return c.close()
		},
	}
	root.PersistentFlags().StringVar(&c.dataDir, "data-dir", "", "override UTS_DATA_DIR")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level for diagnostics on stderr")

	root.AddCommand(
		newImportCmd(c),
		newExportCmd(c),
		newShowCmd(c),
		newDeleteCmd(c),
		newFindCmd(c),
		newSearchCmd(c),
		newBackupCmd(c),
		newBackupsCmd(c),
		newRestoreCmd(c),
		newVersionCmd(),
	)
	return root
}

func (c *cli) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.LoadForMode(config.CLIMode)
	if err != nil {
		return nil, err
	}
	if c.dataDir != "" {
		cfg.DataDir = c.dataDir
	}
	c.cfg = cfg
	c.log = logger.NewWithWriter(c.logLevel, os.Stderr)
	return cfg, nil
}

func (c *cli) openDB(ctx context.Context) (*storage.DB, error) {
	if c.db != nil {
		return c.db, nil
	}
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.New(ctx, cfg.SQLitePath())
	if err != nil {
		return nil, err
	}
	c.db = db
	return db, nil
}

func (c *cli) backups(ctx context.Context) (*backup.Manager, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	if !cfg.R2.Enabled {
		return nil, fmt.Errorf("%w: set UTS_R2_ENABLED and the UTS_R2_* credentials", domerrors.ErrBackupDisabled)
	}
	db, err := c.openDB(ctx)
	if err != nil {
		return nil, err
	}
	return backup.NewR2(ctx, cfg.R2, db, c.log)
}

func (c *cli) close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printLine(cmd.OutOrStdout(), "%s", buildinfo.String())
		},
	}
}

func printLine(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}
