package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"healthmate/app/config"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
	"github.com/samber/do"
	"github.com/samber/oops"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const pragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

var _ do.Shutdownable = (*Client)(nil)

type Client struct {
	db *sql.DB
}

func New(di *do.Injector) (*Client, error) {
	ctx := do.MustInvoke[context.Context](di)
	cfg := do.MustInvoke[*config.Config](di)

	return Open(ctx, cfg.DB.Path)
}

// Open opens the database file, creating its directory, and applies all
// pending migrations.
func Open(ctx context.Context, path string) (*Client, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, oops.In("sqlite").Wrapf(err, "failed to create database directory")
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+pragmas)
	if err != nil {
		return nil, oops.In("sqlite").With("path", path).Wrapf(err, "failed to open database")
	}
	db.SetMaxOpenConns(1)

	if err = migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Client{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return oops.In("sqlite").Wrapf(err, "failed to open migrations")
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return oops.In("sqlite").Wrapf(err, "failed to create migration provider")
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return oops.In("sqlite").Wrapf(err, "failed to apply migrations")
	}

	for _, result := range results {
		slog.Debug("Applied migration", "source", result.Source.Path, "duration", result.Duration)
	}

	return nil
}

func (c *Client) DB() *sql.DB {
	return c.db
}

func (c *Client) Shutdown() error {
	return c.db.Close()
}
