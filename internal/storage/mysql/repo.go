package mysql

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	"realty/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded schema migrations. Already applied versions
// are skipped.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	drv, err := migratemysql.WithInstance(db, &migratemysql.Config{})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "mysql", drv)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

type Repo struct {
	db    *sql.DB
	newID func() string
}

func New(db *sql.DB) *Repo { return &Repo{db: db, newID: uuid.NewString} }

func (r *Repo) Insert(ctx context.Context, a domain.Area) (domain.Area, error) {
	a.ID = r.newID()
	a.Normalize()
	doc, err := json.Marshal(a)
	if err != nil {
		return domain.Area{}, fmt.Errorf("encode area: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, insertAreaSQL,
		a.ID,
		a.Name,
		string(doc),
		a.Version,
		a.CreatedAt.UTC(),
		a.UpdatedAt.UTC(),
	); err != nil {
		return domain.Area{}, err
	}
	return a, nil
}

func (r *Repo) Update(ctx context.Context, a domain.Area, expectedVersion int64) (domain.Area, error) {
	a.Normalize()
	doc, err := json.Marshal(a)
	if err != nil {
		return domain.Area{}, fmt.Errorf("encode area: %w", err)
	}
	res, err := r.db.ExecContext(ctx, updateAreaSQL,
		a.Name,
		string(doc),
		a.Version,
		a.UpdatedAt.UTC(),
		a.ID,
		expectedVersion,
	)
	if err != nil {
		return domain.Area{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Area{}, err
	}
	if n == 0 {
		return domain.Area{}, r.missOrConflict(ctx, a.ID, expectedVersion)
	}
	return a, nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deleteAreaSQL, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("area %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (domain.Area, error) {
	a, err := scanArea(r.db.QueryRowContext(ctx, getAreaSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Area{}, fmt.Errorf("area %s: %w", id, domain.ErrNotFound)
		}
		return domain.Area{}, err
	}
	return a, nil
}

func (r *Repo) List(ctx context.Context) ([]domain.Area, error) {
	rows, err := r.db.QueryContext(ctx, listAreasSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Area{}
	for rows.Next() {
		a, err := scanArea(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// missOrConflict distinguishes a vanished row from a stale version after a
// conditional update touched nothing.
func (r *Repo) missOrConflict(ctx context.Context, id string, expected int64) error {
	var one int
	err := r.db.QueryRowContext(ctx, existsAreaSQL, id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("area %s: %w", id, domain.ErrNotFound)
	case err != nil:
		return err
	default:
		return fmt.Errorf("area %s changed since version %d: %w", id, expected, domain.ErrConflict)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArea(s scanner) (domain.Area, error) {
	var (
		id               string
		doc              []byte
		version          int64
		created, updated time.Time
	)
	if err := s.Scan(&id, &doc, &version, &created, &updated); err != nil {
		return domain.Area{}, err
	}
	var a domain.Area
	if err := json.Unmarshal(doc, &a); err != nil {
		return domain.Area{}, fmt.Errorf("decode area %s: %w", id, err)
	}
	a.ID = id
	a.Version = version
	a.CreatedAt = created.UTC()
	a.UpdatedAt = updated.UTC()
	a.Normalize()
	return a, nil
}
