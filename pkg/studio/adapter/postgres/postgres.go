// Package postgres stores collection files as rows of a PostgreSQL table
// keyed by path.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-studio/pkg/studio"
	"github.com/tendant/simple-studio/pkg/studio/secret"
)

const (
	backend = "postgres"
	// DefaultTable holds the files when Config.Table is empty.
	DefaultTable = "studio_files"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Config options for the postgres adapter
type Config struct {
	// Table may be schema qualified ("content.files").
	Table  string
	Logger *slog.Logger
}

// Adapter implements studio.Adapter on a single table. Statements run
// directly against db, so nothing is ever pending.
type Adapter struct {
	db     DBTX
	pool   *pgxpool.Pool // owned pool, closed on Disconnect
	table  string
	logger *slog.Logger
}

// New creates an adapter on an existing connection, pool or transaction.
func New(db DBTX, cfg Config) (*Adapter, error) {
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	table, err := quoteTable(cfg.Table)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		db:     db,
		table:  table,
		logger: logger.With("backend", backend, "table", cfg.Table),
	}, nil
}

// Open creates a pool from the connection URL held in url. The pool is
// closed by Disconnect.
func Open(ctx context.Context, url *secret.Box[string], cfg Config) (*Adapter, error) {
	connString, err := url.Reveal()
	if err != nil {
		return nil, &studio.ConfigurationError{Subject: "database url", Reason: "unusable credential", Err: err}
	}
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, &studio.ConfigurationError{Subject: "database url", Reason: "invalid connection string", Err: err}
	}
	a, err := New(pool, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}
	a.pool = pool
	return a, nil
}

func quoteTable(name string) (string, error) {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return "", &studio.ConfigurationError{Subject: "table", Reason: fmt.Sprintf("invalid table name %q", name)}
	}
	for _, p := range parts {
		if p == "" {
			return "", &studio.ConfigurationError{Subject: "table", Reason: fmt.Sprintf("invalid table name %q", name)}
		}
	}
	return pgx.Identifier(parts).Sanitize(), nil
}

// Connect verifies the connection and creates the table if needed.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.pool != nil {
		if err := a.pool.Ping(ctx); err != nil {
			return &studio.ConfigurationError{Subject: "database", Reason: "unreachable", Err: err}
		}
	}
	_, err := a.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+a.table+` (
			path TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return a.handlePostgresError("connect", err)
	}
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}

func (a *Adapter) Read(ctx context.Context, p string) (string, error) {
	p = studio.NormalizePath(p)
	var content string
	err := a.db.QueryRow(ctx, `SELECT content FROM `+a.table+` WHERE path = $1`, p).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", &studio.NotFoundError{Backend: backend, Path: p, Err: err}
	} else if err != nil {
		return "", a.handlePostgresError("read", err)
	}
	return content, nil
}

func (a *Adapter) Write(ctx context.Context, p, content string) error {
	p = studio.NormalizePath(p)
	_, err := a.db.Exec(ctx, `
		INSERT INTO `+a.table+` (path, content, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (path) DO UPDATE SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at`,
		p, content)
	if err != nil {
		return a.handlePostgresError("write", err)
	}
	a.logger.Debug("file written", "path", p)
	return nil
}

func (a *Adapter) Remove(ctx context.Context, p string) error {
	p = studio.NormalizePath(p)
	tag, err := a.db.Exec(ctx, `DELETE FROM `+a.table+` WHERE path = $1`, p)
	if err != nil {
		return a.handlePostgresError("remove", err)
	}
	if tag.RowsAffected() == 0 {
		return &studio.NotFoundError{Backend: backend, Path: p}
	}
	a.logger.Debug("file deleted", "path", p)
	return nil
}

// HasPendingChanges is always false.
func (a *Adapter) HasPendingChanges(ctx context.Context) (bool, error) {
	return false, nil
}

// ReadDir lists the files directly under dir. A directory exists as long
// as some path lies below it.
func (a *Adapter) ReadDir(ctx context.Context, dir string) ([]string, error) {
	dir = strings.TrimSuffix(path.Clean(studio.NormalizePath(dir)), "/")
	rows, err := a.db.Query(ctx, `SELECT path FROM `+a.table+` WHERE path LIKE $1 ESCAPE '\'`, likePrefix(dir))
	if err != nil {
		return nil, a.handlePostgresError("list", err)
	}
	paths, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, a.handlePostgresError("list", err)
	}
	if len(paths) == 0 {
		return nil, &studio.NotFoundError{Backend: backend, Path: dir}
	}
	return childFiles(dir, paths), nil
}

// likePrefix builds a LIKE pattern matching every path below dir.
func likePrefix(dir string) string {
	if dir == "." || dir == "" {
		return "%"
	}
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(dir)
	return escaped + "/%"
}

// childFiles keeps the entries of paths that sit directly in dir.
func childFiles(dir string, paths []string) []string {
	prefix := dir + "/"
	if dir == "." || dir == "" {
		prefix = ""
	}
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok || rest == "" || strings.Contains(rest, "/") {
			continue
		}
		names = append(names, rest)
	}
	sort.Strings(names)
	return names
}

// Error handling helper
func (a *Adapter) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01": // undefined_table
			return &studio.ConfigurationError{Subject: a.table, Reason: "table does not exist, connect the adapter first", Err: err}
		case "28P01", "28000": // invalid_password, invalid_authorization_specification
			return &studio.ConfigurationError{Subject: "database", Reason: "authentication failed", Err: err}
		default:
			return fmt.Errorf("database error in %s: %s (code: %s): %w", operation, pgErr.Message, pgErr.Code, err)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}
