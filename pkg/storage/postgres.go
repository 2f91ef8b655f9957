package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicate is returned when an insert violates a unique constraint.
// It is the database's final word on slug uniqueness; callers that raced
// past their own existence pre-check see this instead of their pre-check
// error.
var ErrDuplicate = errors.New("duplicate key value violates unique constraint")

const uniqueViolationCode = "23505"

const redirectionColumns = "id, slug, url, source, expiration_date, created_at, updated_at"

type PostgresRedirectionStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresRedirectionStorage(pool *pgxpool.Pool) *PostgresRedirectionStorage {
	return &PostgresRedirectionStorage{pool: pool}
}

func (s *PostgresRedirectionStorage) Create(ctx context.Context, redirection *Redirection) (*Redirection, error) {
	query := `INSERT INTO redirections (slug, url, source, expiration_date) VALUES ($1, $2, $3, $4) RETURNING ` + redirectionColumns
	row := s.pool.QueryRow(ctx, query, redirection.Slug, redirection.URL, redirection.Source, redirection.ExpirationDate)
	created, err := scanRedirection(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return created, nil
}

func (s *PostgresRedirectionStorage) GetBySlug(ctx context.Context, slug string) (*Redirection, error) {
	query := `SELECT ` + redirectionColumns + ` FROM redirections WHERE slug = $1`
	redirection, err := scanRedirection(s.pool.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return redirection, nil
}

func (s *PostgresRedirectionStorage) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM redirections WHERE slug = $1)`
	var exists bool
	if err := s.pool.QueryRow(ctx, query, slug).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *PostgresRedirectionStorage) UpdateURL(ctx context.Context, slug, url string) (*Redirection, error) {
	query := `UPDATE redirections SET url = $2, updated_at = now() WHERE slug = $1 RETURNING ` + redirectionColumns
	redirection, err := scanRedirection(s.pool.QueryRow(ctx, query, slug, url))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return redirection, nil
}

// Delete removes the redirection row; the visits foreign key cascades,
// so associated visits are removed by the database.
func (s *PostgresRedirectionStorage) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM redirections WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id)
	return err
}

func scanRedirection(row pgx.Row) (*Redirection, error) {
	var r Redirection
	err := row.Scan(&r.ID, &r.Slug, &r.URL, &r.Source, &r.ExpirationDate, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

type PostgresVisitStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresVisitStorage(pool *pgxpool.Pool) *PostgresVisitStorage {
	return &PostgresVisitStorage{pool: pool}
}

// Create inserts a visit row with only the columns actually present on the
// record; absent enrichment fields are left out of the statement entirely.
func (s *PostgresVisitStorage) Create(ctx context.Context, visit *Visit) (*Visit, error) {
	columns := []string{"redirection_id"}
	args := []any{visit.RedirectionID}

	optional := []struct {
		column string
		value  *string
	}{
		{"user_agent", visit.UserAgent},
		{"language", visit.Language},
		{"platform", visit.Platform},
		{"browser", visit.Browser},
		{"device", visit.Device},
		{"os", visit.OS},
		{"ip", visit.IP},
		{"country", visit.Country},
		{"region", visit.Region},
		{"city", visit.City},
	}
	for _, field := range optional {
		if field.value != nil {
			columns = append(columns, field.column)
			args = append(args, *field.value)
		}
	}

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(
		"INSERT INTO visits (%s) VALUES (%s) RETURNING id, created_at",
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&visit.ID, &visit.CreatedAt); err != nil {
		return nil, err
	}
	return visit, nil
}

// Stats computes the visit aggregates for one redirection at read time.
// lastVisitedAt is nil when there are no visits.
func (s *PostgresVisitStorage) Stats(ctx context.Context, redirectionID int) (int64, *time.Time, error) {
	query := `SELECT COUNT(*), MAX(created_at) FROM visits WHERE redirection_id = $1`
	var count int64
	var lastVisitedAt *time.Time
	if err := s.pool.QueryRow(ctx, query, redirectionID).Scan(&count, &lastVisitedAt); err != nil {
		return 0, nil, err
	}
	return count, lastVisitedAt, nil
}
