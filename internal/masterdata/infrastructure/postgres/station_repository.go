package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	masterdata "rainlog/internal/masterdata/domain"
)

const defaultStationsTable = "stations"

// StationRepository is a Postgres implementation for stations.
type StationRepository struct {
	db    DBTX
	table string
}

// NewStationRepository constructs a repository.
func NewStationRepository(db DBTX, opts ...StationOption) *StationRepository {
	repo := &StationRepository{db: db, table: defaultStationsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// StationOption configures the repository.
type StationOption func(*StationRepository)

// WithStationTable overrides the default table name.
func WithStationTable(table string) StationOption {
	return func(repo *StationRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// EnsureByName inserts the station unless a station with that name exists.
func (r *StationRepository) EnsureByName(ctx context.Context, name string) (*masterdata.Station, bool, error) {
	if r == nil || r.db == nil {
		return nil, false, errors.New("station repo: nil db")
	}
	name, err := masterdata.NormalizeName(name)
	if err != nil {
		return nil, false, err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (name)
VALUES ($1)
ON CONFLICT (name) DO NOTHING
RETURNING id, name, created_at, updated_at`, r.table)

	station, err := scanStation(r.db.QueryRowContext(ctx, query, name))
	if err == nil {
		return station, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	query = fmt.Sprintf(`
SELECT id, name, created_at, updated_at
FROM %s
WHERE name = $1`, r.table)
	station, err = scanStation(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		return nil, false, err
	}
	return station, false, nil
}

// Get loads a station by id.
func (r *StationRepository) Get(ctx context.Context, id int64) (*masterdata.Station, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("station repo: nil db")
	}
	if id <= 0 {
		return nil, masterdata.ErrNotFound
	}

	query := fmt.Sprintf(`
SELECT id, name, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	station, err := scanStation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, masterdata.ErrNotFound
		}
		return nil, err
	}
	return station, nil
}

// List returns all stations ordered by id.
func (r *StationRepository) List(ctx context.Context) ([]masterdata.Station, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("station repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT id, name, created_at, updated_at
FROM %s
ORDER BY id`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []masterdata.Station
	for rows.Next() {
		station, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, *station)
	}
	return stations, rows.Err()
}

// Rename changes a station name.
func (r *StationRepository) Rename(ctx context.Context, id int64, name string) (*masterdata.Station, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("station repo: nil db")
	}
	name, err := masterdata.NormalizeName(name)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
UPDATE %s
SET name = $2, updated_at = NOW()
WHERE id = $1
RETURNING id, name, created_at, updated_at`, r.table)

	station, err := scanStation(r.db.QueryRowContext(ctx, query, id, name))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, masterdata.ErrNotFound
		case pgErrorCode(err) == pgUniqueViolation:
			return nil, fmt.Errorf("%w: %q", masterdata.ErrDuplicateName, name)
		}
		return nil, err
	}
	return station, nil
}

// Delete removes a station that no observation references.
func (r *StationRepository) Delete(ctx context.Context, id int64) error {
	if r == nil || r.db == nil {
		return errors.New("station repo: nil db")
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return masterdata.ErrStationInUse
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return masterdata.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStation(row rowScanner) (*masterdata.Station, error) {
	var station masterdata.Station
	if err := row.Scan(&station.ID, &station.Name, &station.CreatedAt, &station.UpdatedAt); err != nil {
		return nil, err
	}
	station.CreatedAt = station.CreatedAt.UTC()
	station.UpdatedAt = station.UpdatedAt.UTC()
	return &station, nil
}
