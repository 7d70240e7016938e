// Package cli implements the boardimport command line: previewing and
// running imports against a board store, applying the schema and managing
// board members.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/JonMunkholm/boardimport/internal/backend"
	"github.com/JonMunkholm/boardimport/internal/config"
	"github.com/JonMunkholm/boardimport/internal/importer"
	"github.com/JonMunkholm/boardimport/internal/logging"
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	envFile    string
	driver     string
	dbURL      string
	sqlitePath string
	logLevel   string
	output     string
}

// NewRootCommand builds the boardimport command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "boardimport",
		Short: "Import Trello, CSV and plain text exports into a kanban board",
		Long: `boardimport reads a board export, maps it onto an existing board and
writes the resulting columns, labels, tasks and checklists.

Supported inputs:
- CSV with a header row (column names are auto-detected)
- Trello JSON exports
- Custom JSON: {"tasks": [{"title": ..., "column": ..., "labels": [...]}]}
- Plain text, one task per line (bullets and numbering are stripped)

The database comes from DB_DRIVER, DATABASE_URL and SQLITE_PATH, or from
the flags below.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case outputTable, outputJSON, outputYAML:
				return nil
			}
			return fmt.Errorf("unknown output format %q (want table, json or yaml)", opts.output)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	pf.StringVar(&opts.driver, "driver", "", "database driver: postgres or sqlite (default from DB_DRIVER)")
	pf.StringVar(&opts.dbURL, "database-url", "", "postgres connection URL (default from DATABASE_URL)")
	pf.StringVar(&opts.sqlitePath, "sqlite-path", "", "sqlite database file; implies --driver sqlite")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	pf.StringVarP(&opts.output, "output", "o", outputTable, "output format: table, json, yaml")

	root.AddCommand(
		newPreviewCommand(opts),
		newImportCommand(opts),
		newMigrateCommand(opts),
		newBoardCommand(opts),
	)
	return root
}

// config loads the environment and applies flag overrides.
func (o *globalOptions) config() (*config.Config, error) {
	if err := config.LoadEnvFiles(o.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Read()
	if err != nil {
		return nil, err
	}

	if o.driver != "" {
		cfg.Database.Driver = strings.ToLower(o.driver)
	}
	if o.sqlitePath != "" {
		cfg.Database.SQLitePath = o.sqlitePath
		if o.driver == "" {
			cfg.Database.Driver = config.DriverSQLite
		}
	}
	if o.dbURL != "" {
		cfg.Database.URL = o.dbURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (o *globalOptions) logger(w io.Writer) *slog.Logger {
	return logging.New(w, o.logLevel, "text")
}

// session is an open store plus the settings it was opened with.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	handle *backend.Handle
}

func (s *session) Close() {
	s.handle.Close()
}

func (s *session) serviceConfig() importer.ServiceConfig {
	cfg := s.cfg.Import.ServiceConfig()
	cfg.Importer.Logger = s.logger
	return cfg
}

func (o *globalOptions) open(ctx context.Context, cmd *cobra.Command) (*session, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	return o.openWith(ctx, cmd, cfg)
}

func (o *globalOptions) openWith(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (*session, error) {
	logger := o.logger(cmd.ErrOrStderr())

	handle, err := backend.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, handle: handle}, nil
}

// readInput reads a file argument, or stdin when the argument is "-".
func readInput(cmd *cobra.Command, path string, limit int64) ([]byte, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s is larger than %d bytes", path, limit)
	}
	return data, nil
}
