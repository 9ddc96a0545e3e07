package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultSourceDir = "migrations"

var errUsage = errors.New("usage")

// schemaCommands run against the configured postgres database
var schemaCommands = map[string]func(m *migration.Migrator, args []string, log *zap.Logger) error{
	"up":   func(m *migration.Migrator, _ []string, _ *zap.Logger) error { return m.Up() },
	"down": func(m *migration.Migrator, _ []string, _ *zap.Logger) error { return m.Down() },
	"step": func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		n, err := intArg(args, "step count")
		if err != nil {
			return err
		}
		return m.Steps(n)
	},
	"goto": func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		v, err := intArg(args, "version")
		if err != nil {
			return err
		}
		if v < 0 {
			return fmt.Errorf("version must not be negative: %d", v)
		}
		return m.GoTo(uint(v))
	},
	"force": func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		v, err := intArg(args, "version")
		if err != nil {
			return err
		}
		return m.Force(v)
	},
	"version": func(m *migration.Migrator, _ []string, log *zap.Logger) error {
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		log.Info("Schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	},
}

func main() {
	dir := flag.String("path", "", "Migrations directory (default: migrations embedded in the binary)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() == 0 {
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{Level: *logLevel, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(flag.Arg(0), flag.Args()[1:], *dir, log); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			printUsage()
			os.Exit(2)
		}
		log.Error("Migration command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
		os.Exit(1)
	}
}

func run(command string, args []string, dir string, log *zap.Logger) error {
	if dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		dir = abs
	}

	switch command {
	case "create":
		return create(args, dir, log)
	case "list":
		return list(dir)
	}

	op, ok := schemaCommands[command]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver == "sqlite" {
		return errors.New("SQL migrations target postgres; sqlite schemas are created by the server on startup")
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, dir, log)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer m.Close()

	log.Info("Running migration command",
		zap.String("command", command),
		zap.String("source", sourceLabel(dir)),
	)
	return op(m, args, log)
}

func create(args []string, dir string, log *zap.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: create <name> [description]", errUsage)
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}
	mf, err := migration.CreateMigration(sourceDir(dir), args[0], description)
	if err != nil {
		return err
	}
	log.Info("Migration created",
		zap.Uint("version", mf.Version),
		zap.String("up", mf.UpPath),
		zap.String("down", mf.DownPath),
	)
	return nil
}

func list(dir string) error {
	found, err := migration.ListMigrations(sourceDir(dir))
	if err != nil {
		return err
	}
	for _, m := range found {
		fmt.Println(m)
	}
	return nil
}

func intArg(args []string, what string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%w: %s required", errUsage, what)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", errUsage, what, args[0])
	}
	return n, nil
}

// sourceDir is where create and list work; they never read the embedded set
func sourceDir(dir string) string {
	if dir == "" {
		return defaultSourceDir
	}
	return dir
}

func sourceLabel(dir string) string {
	if dir == "" {
		return "embedded"
	}
	return dir
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Invoicing schema migrations

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Revert all migrations
  step <n>              Apply n migrations (negative reverts)
  goto <version>        Move to a specific version
  version               Print the applied version
  force <version>       Mark version as applied and clear the dirty flag
  create <name> [desc]  Write the next numbered up/down pair
  list                  List migrations in the source directory

Flags:
  -path string          Migrations directory; schema commands use the
                        embedded migrations when unset
  -log-level string     debug, info, warn or error (default info)

Database settings come from INV_DATABASE_URL or INV_DATABASE_HOST,
INV_DATABASE_PORT, INV_DATABASE_USER, INV_DATABASE_PASSWORD,
INV_DATABASE_DBNAME and INV_DATABASE_SSLMODE.
`)
}
