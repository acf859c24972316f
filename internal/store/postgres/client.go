// Package postgres persists the signal and trade journals and the audit log
// in PostgreSQL (Supabase in production) through pgxpool.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ClientConfig is either a full DSN or the discrete Supabase fields.
type ClientConfig struct {
	DSN      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns cfg.DSN when set, otherwise a postgres:// URL assembled from
// the discrete fields with credentials escaped.
func DSN(cfg ClientConfig) string {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(lo.Ternary(cfg.Port == 0, 5432, cfg.Port))),
		Path:     "/" + cfg.Database,
		RawQuery: "sslmode=" + lo.Ternary(cfg.SSLMode == "", "disable", cfg.SSLMode),
	}
	return u.String()
}

// Client owns the journal connection pool.
type Client struct {
	pool *pgxpool.Pool
}

// New opens the pool and pings it once.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	poolCfg, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	poolCfg.ConnConfig.DialFunc = dialIPv4First

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	c := &Client{pool: pool}
	if err := c.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return c, nil
}

// Pool exposes the pool to the stores.
func (c *Client) Pool() *pgxpool.Pool { return c.pool }

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// Close releases every pooled connection.
func (c *Client) Close() { c.pool.Close() }

// dialIPv4First walks the host's A records before handing the address to the
// default dialer. Supabase pooler hosts publish AAAA records that many
// container networks cannot route.
func dialIPv4First(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("postgres: split host/port %q: %w", addr, err)
	}
	var d net.Dialer
	if net.ParseIP(host) == nil {
		ips, lookupErr := net.DefaultResolver.LookupIP(ctx, "ip4", host)
		for _, ip := range ips {
			if conn, err := d.DialContext(ctx, "tcp4", net.JoinHostPort(ip.String(), port)); err == nil {
				return conn, nil
			}
		}
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, fmt.Errorf("postgres: dial %q: %w", addr, errors.Join(lookupErr, err))
		}
		return conn, nil
	}
	return d.DialContext(ctx, network, addr)
}

const (
	createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename   TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`
	selectApplied  = `SELECT filename FROM schema_migrations`
	recordMigrated = `INSERT INTO schema_migrations (filename) VALUES ($1)`
)

// RunMigrations applies the embedded migrations that schema_migrations has
// not seen yet, in file-name order, one transaction per file.
func (c *Client) RunMigrations(ctx context.Context) error {
	if _, err := c.pool.Exec(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("postgres: create schema_migrations: %w", err)
	}

	rows, err := c.pool.Query(ctx, selectApplied)
	if err != nil {
		return fmt.Errorf("postgres: list applied migrations: %w", err)
	}
	applied, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("postgres: list applied migrations: %w", err)
	}

	pending, err := pendingMigrations(migrationsFS, applied)
	if err != nil {
		return err
	}
	for _, name := range pending {
		script, err := fs.ReadFile(migrationsFS, path.Join("migrations", name))
		if err != nil {
			return fmt.Errorf("postgres: read migration %s: %w", name, err)
		}
		err = pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(script)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, recordMigrated, name)
			return err
		})
		if err != nil {
			return fmt.Errorf("postgres: apply migration %s: %w", name, err)
		}
	}
	return nil
}

// pendingMigrations lists the .sql files under migrations/ that are not in
// applied, sorted by name.
func pendingMigrations(fsys fs.FS, applied []string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, fmt.Errorf("postgres: read migrations dir: %w", err)
	}
	names := lo.FilterMap(entries, func(e fs.DirEntry, _ int) (string, bool) {
		return e.Name(), !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") && !slices.Contains(applied, e.Name())
	})
	slices.Sort(names)
	return names, nil
}
