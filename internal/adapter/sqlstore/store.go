package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"itassist/internal/index"
)

//go:embed migrations
var migrations embed.FS

type Config struct {
	Driver Dialect
	// Path is the sqlite database file.
	Path string
	// DSN is the postgres connection string.
	DSN string

	RetryAttempts int
	RetryDelay    time.Duration
}

// Store is an index.Snapshotter backed by sqlite or postgres.
type Store struct {
	*Repo
	db     *sql.DB
	target string
}

var _ index.Snapshotter = (*Store)(nil)

// Open connects to the configured database and applies the snapshot schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	switch cfg.Driver {
	case DialectSQLite, "":
		return openSQLite(ctx, cfg)
	case DialectPostgres:
		return openPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported snapshot driver %q", cfg.Driver)
	}
}

func openSQLite(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite snapshot path is empty")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		_ = db.Close()
		return nil, &index.CorruptError{Reason: "open " + cfg.Path, Err: err}
	}
	if err := runMigrations(driver, "sqlite"); err != nil {
		_ = db.Close()
		return nil, &index.CorruptError{Reason: "migrate " + cfg.Path, Err: err}
	}

	slog.InfoContext(ctx, "snapshot store ready", "driver", "sqlite", "path", cfg.Path)
	return &Store{Repo: NewRepo(db, DialectSQLite), db: db, target: cfg.Path}, nil
}

func openPostgres(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres snapshot DSN is empty")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.NewConstantBackOff(cfg.RetryDelay)
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, db.PingContext(ctx)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(attempts)), // #nosec G115 -- attempts is clamped to >= 1 above
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.WarnContext(ctx, "failed to ping db, retrying...", "error", err, "next_attempt_in", next)
		}),
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration driver error: %w", err)
	}
	if err := runMigrations(driver, "postgres"); err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.InfoContext(ctx, "snapshot store ready", "driver", "postgres")
	return &Store{Repo: NewRepo(db, DialectPostgres), db: db, target: "postgres"}, nil
}

func runMigrations(driver database.Driver, name string) error {
	sub, err := fs.Sub(migrations, "migrations/"+name)
	if err != nil {
		return fmt.Errorf("migration source error: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("migration source error: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, name, driver)
	if err != nil {
		return fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up error: %w", err)
	}
	return nil
}

// Target describes where snapshots are stored, for logs and stats.
func (s *Store) Target() string {
	return s.target
}

func (s *Store) Driver() Dialect {
	return s.dialect
}

func (s *Store) Close() error {
	return s.db.Close()
}
