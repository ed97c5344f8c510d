package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/go-provisioning-api/internal/config"
	"github.com/go-provisioning-api/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Provisioner creates and re-provisions database logins for redeemed accounts.
// The underlying pool is process-wide, lazily initialized on first use, and
// shared across invocations; pgxpool handles concurrent checkout.
type Provisioner struct {
	cfg  *config.Config
	once sync.Once
	pool *pgxpool.Pool
	err  error
}

func NewProvisioner(cfg *config.Config) *Provisioner {
	return &Provisioner{cfg: cfg}
}

func (p *Provisioner) connect(ctx context.Context) (*pgxpool.Pool, error) {
	p.once.Do(func() {
		p.pool, p.err = pgxpool.New(ctx, dsn(p.cfg))
		if p.err == nil {
			slog.Info("relational provisioner pool initialized", "host", p.cfg.DBHost, "db", p.cfg.DBName)
		}
	})
	if p.err != nil {
		return nil, fmt.Errorf("pool init: %v: %w", p.err, domain.ErrUnavailable)
	}
	return p.pool, nil
}

// Close releases the pool. Safe to call when the pool was never initialized.
func (p *Provisioner) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Provision idempotently ensures a login named account exists with the given
// password, owns a private <account>_db0001 schema, and can read the shared
// schemas. Create-if-absent and password reset are separate statements; a
// partial failure leaves earlier steps in place (no rollback).
func (p *Provisioner) Provision(ctx context.Context, account, password string) error {
	pool, err := p.connect(ctx)
	if err != nil {
		return err
	}

	login := pgx.Identifier{account}.Sanitize()

	var exists bool
	if err := pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)", account).Scan(&exists); err != nil {
		return fmt.Errorf("role lookup: %v: %w", err, domain.ErrUnavailable)
	}
	if !exists {
		if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE ROLE %s LOGIN", login)); err != nil {
			return fmt.Errorf("create role %s: %v: %w", account, err, domain.ErrUnavailable)
		}
	}

	// DDL takes no bind parameters, so the password goes in as a quoted
	// literal. The account name is machine-generated, never raw user input.
	if _, err := pool.Exec(ctx, fmt.Sprintf("ALTER ROLE %s WITH LOGIN PASSWORD %s", login, quoteLiteral(password))); err != nil {
		return fmt.Errorf("set password for %s: %v: %w", account, err, domain.ErrUnavailable)
	}

	owned := pgx.Identifier{account + "_db0001"}.Sanitize()
	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s AUTHORIZATION %s", owned, login)); err != nil {
		return fmt.Errorf("create schema for %s: %v: %w", account, err, domain.ErrUnavailable)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf("GRANT ALL PRIVILEGES ON SCHEMA %s TO %s", owned, login)); err != nil {
		return fmt.Errorf("grant owned schema to %s: %v: %w", account, err, domain.ErrUnavailable)
	}

	for _, schema := range p.cfg.SharedSchemas {
		shared := pgx.Identifier{strings.TrimSpace(schema)}.Sanitize()
		if _, err := pool.Exec(ctx, fmt.Sprintf("GRANT USAGE ON SCHEMA %s TO %s", shared, login)); err != nil {
			return fmt.Errorf("grant usage on %s to %s: %v: %w", schema, account, err, domain.ErrUnavailable)
		}
		if _, err := pool.Exec(ctx, fmt.Sprintf("GRANT SELECT ON ALL TABLES IN SCHEMA %s TO %s", shared, login)); err != nil {
			return fmt.Errorf("grant select on %s to %s: %v: %w", schema, account, err, domain.ErrUnavailable)
		}
	}

	return nil
}

// quoteLiteral renders s as a PostgreSQL string literal, E-prefixed when it
// contains backslashes so the escaping is unambiguous regardless of
// standard_conforming_strings.
func quoteLiteral(s string) string {
	quoted := strings.ReplaceAll(s, "'", "''")
	if strings.Contains(quoted, `\`) {
		return `E'` + strings.ReplaceAll(quoted, `\`, `\\`) + `'`
	}
	return "'" + quoted + "'"
}

func dsn(cfg *config.Config) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:   fmt.Sprintf("%s:%s", cfg.DBHost, cfg.DBPort),
		Path:   "/" + cfg.DBName,
	}
	q := url.Values{}
	if cfg.DBSSLMode != "" {
		q.Set("sslmode", cfg.DBSSLMode)
	}
	if cfg.DBSSLRootCert != "" {
		q.Set("sslrootcert", cfg.DBSSLRootCert)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
