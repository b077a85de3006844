package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/GoodnightSam/JGL-Assistant/internal/services"
)

// Store is the SQLite-backed implementation of Counter and DomainScores.
type Store struct {
	db    *sql.DB
	path  string
	limit int
	now   func() time.Time
}

// Open initializes or connects to the quota database and applies the
// schema. limit is the daily search budget.
func Open(path string, limit int) (*Store, error) {
	if limit <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "quota", "open", "daily limit must be positive", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrStorage, "quota", "open", "create state directory", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "quota", "open", "open sqlite db", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, services.Wrap(services.ErrStorage, "quota", "open", fmt.Sprintf("apply pragma %q", pragma), execErr)
		}
	}

	store := &Store{db: db, path: path, limit: limit, now: time.Now}
	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) applySchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS search_usage (
            day TEXT PRIMARY KEY,
            used INTEGER NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS domain_failures (
            domain TEXT PRIMARY KEY,
            failures INTEGER NOT NULL DEFAULT 0,
            updated_at TEXT NOT NULL
        )`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return services.Wrap(services.ErrStorage, "quota", "migrate", "apply schema", err)
		}
	}
	return nil
}

func (s *Store) today() string {
	return s.now().UTC().Format("2006-01-02")
}

// Reserve atomically consumes n units of today's budget. Day rollover is
// automatic: each UTC date gets its own row. Insufficient remaining budget
// returns services.ErrQuotaExceeded with nothing consumed.
func (s *Store) Reserve(ctx context.Context, n int) error {
	if n <= 0 {
		return services.Wrap(services.ErrValidation, "quota", "reserve", "reservation must be positive", nil)
	}
	day := s.today()

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO search_usage (day, used) VALUES (?, 0) ON CONFLICT(day) DO NOTHING`, day); err != nil {
		return services.Wrap(services.ErrStorage, "quota", "reserve", "ensure day row", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE search_usage SET used = used + ? WHERE day = ? AND used + ? <= ?`,
		n, day, n, s.limit)
	if err != nil {
		return services.Wrap(services.ErrStorage, "quota", "reserve", "update usage", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return services.Wrap(services.ErrStorage, "quota", "reserve", "rows affected", err)
	}
	if affected == 0 {
		used, _, usageErr := s.Usage(ctx)
		detail := fmt.Sprintf("daily search budget exhausted (requested %d, limit %d)", n, s.limit)
		if usageErr == nil {
			detail = fmt.Sprintf("daily search budget exhausted (requested %d, used %d of %d)", n, used, s.limit)
		}
		return services.Wrap(services.ErrQuotaExceeded, "quota", "reserve", detail, nil)
	}
	return nil
}

// Usage reports today's consumed units and the configured limit.
func (s *Store) Usage(ctx context.Context) (int, int, error) {
	var used int
	err := s.db.QueryRowContext(ctx,
		`SELECT used FROM search_usage WHERE day = ?`, s.today()).Scan(&used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, s.limit, nil
		}
		return 0, s.limit, services.Wrap(services.ErrStorage, "quota", "usage", "query usage", err)
	}
	return used, s.limit, nil
}

// RecordFailure increments the failure count for a domain.
func (s *Store) RecordFailure(ctx context.Context, domain string) error {
	domain = NormalizeDomain(domain)
	if domain == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO domain_failures (domain, failures, updated_at) VALUES (?, 1, ?)
         ON CONFLICT(domain) DO UPDATE SET failures = failures + 1, updated_at = excluded.updated_at`,
		domain, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return services.Wrap(services.ErrStorage, "quota", "record_failure", domain, err)
	}
	return nil
}

// Score returns the ranking adjustment for a domain, combining the static
// lists with recorded failures.
func (s *Store) Score(ctx context.Context, domain string) (int, error) {
	normalized := NormalizeDomain(domain)
	var failures int
	err := s.db.QueryRowContext(ctx,
		`SELECT failures FROM domain_failures WHERE domain = ?`, normalized).Scan(&failures)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, services.Wrap(services.ErrStorage, "quota", "score", normalized, err)
	}
	return ScoreFor(normalized, failures), nil
}

// Failures returns all recorded failure counts keyed by domain.
func (s *Store) Failures(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT domain, failures FROM domain_failures ORDER BY failures DESC`)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "quota", "failures", "query failures", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var domain string
		var failures int
		if err := rows.Scan(&domain, &failures); err != nil {
			return nil, services.Wrap(services.ErrStorage, "quota", "failures", "scan row", err)
		}
		out[domain] = failures
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrStorage, "quota", "failures", "iterate rows", err)
	}
	return out, nil
}
