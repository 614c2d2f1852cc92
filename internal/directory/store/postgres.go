package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"residents/internal/directory/models"
	txcontext "residents/pkg/platform/tx"
)

// writerLockKey is the advisory lock taken by every add transaction so adds
// are applied one at a time across all server processes.
const writerLockKey int64 = 0x7265736964656e74

// PostgresStore reads the directory from PostgreSQL. The append log is the
// residents table ordered by seq; the index maps each name to the seq of its
// latest row.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed directory reader.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindLatest(ctx context.Context, name string) (*models.Person, error) {
	query := `
		SELECT r.name, r.age, r.residency_status
		FROM resident_name_index i
		JOIN residents r ON r.seq = i.seq
		WHERE i.name = $1
	`
	p, err := scanPerson(s.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find resident: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Person, error) {
	query := `
		SELECT name, age, residency_status
		FROM residents
		ORDER BY seq
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list residents: %w", err)
	}
	defer rows.Close()

	var out []*models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resident: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate residents: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountLivesHere(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM residents WHERE residency_status = $1`
	if err := s.db.QueryRowContext(ctx, query, models.LivesHere.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("count residents: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*models.Person, error) {
	var (
		name   string
		age    string
		status string
	)
	if err := row.Scan(&name, &age, &status); err != nil {
		return nil, err
	}
	parsed, err := models.ParseResidencyStatus(status)
	if err != nil {
		return nil, err
	}
	n, err := parseAge(age)
	if err != nil {
		return nil, err
	}
	return models.NewPerson(name, n, parsed), nil
}

// formatAge and parseAge carry ages through NUMERIC as decimal text so the
// whole uint range survives; a BIGINT would wrap above MaxInt64.
func formatAge(age uint) string {
	return strconv.FormatUint(uint64(age), 10)
}

func parseAge(text string) (uint, error) {
	n, err := strconv.ParseUint(text, 10, strconv.IntSize)
	if err != nil {
		return 0, fmt.Errorf("parse age %q: %w", text, err)
	}
	return uint(n), nil
}

// PostgresTx runs each add in a database transaction holding the writer
// advisory lock. The transaction is exposed through the context so the
// outbox publisher records the notification in the same commit.
type PostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresTx constructs a transaction runner over db.
func NewPostgresTx(db *sql.DB) *PostgresTx {
	return &PostgresTx{db: db}
}

func (t *PostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context, w Writer) error) error {
	ctx, cancel, err := beginTx(ctx, t.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add transaction: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if _, err := sqlTx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, writerLockKey); err != nil {
		return fmt.Errorf("acquire writer lock: %w", err)
	}

	if err := fn(txcontext.WithTx(ctx, sqlTx), &postgresWriter{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit add transaction: %w", err)
	}
	return nil
}

type postgresWriter struct {
	tx *sql.Tx
}

func (w *postgresWriter) Append(ctx context.Context, person *models.Person) error {
	var seq int64
	insert := `
		INSERT INTO residents (name, age, residency_status)
		VALUES ($1, $2, $3)
		RETURNING seq
	`
	err := w.tx.QueryRowContext(ctx, insert,
		person.Name,
		formatAge(person.Age),
		person.ResidencyStatus.String(),
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("insert resident: %w", err)
	}

	upsert := `
		INSERT INTO resident_name_index (name, seq)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET seq = EXCLUDED.seq
	`
	if _, err := w.tx.ExecContext(ctx, upsert, person.Name, seq); err != nil {
		return fmt.Errorf("update name index: %w", err)
	}
	return nil
}
