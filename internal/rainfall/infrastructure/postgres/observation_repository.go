package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	rainfall "rainlog/internal/rainfall/domain"
)

const pgForeignKeyViolation = "23503"

const selectView = `
SELECT r.id, r.user_id, r.station_id, r.observed_at, r.rainfall_mm, r.time_range, r.created_at,
	u.username, s.name
FROM rain_records r
JOIN users u ON u.id = r.user_id
JOIN stations s ON s.id = r.station_id`

// ObservationRepository persists observations in the rain_records table.
type ObservationRepository struct {
	db *sql.DB
}

// NewObservationRepository constructs a repository.
func NewObservationRepository(db *sql.DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

// Create inserts an observation and sets its id.
func (r *ObservationRepository) Create(ctx context.Context, obs *rainfall.Observation) error {
	if r == nil || r.db == nil {
		return errors.New("observation repo: nil db")
	}
	if obs == nil {
		return errors.New("observation repo: nil observation")
	}
	if err := obs.Validate(); err != nil {
		return err
	}

	err := r.db.QueryRowContext(ctx, `
INSERT INTO rain_records (
	user_id, station_id, observed_at, rainfall_mm, time_range, created_at
) VALUES (
	$1, $2, $3, $4, $5, $6
)
RETURNING id`,
		obs.UserID, obs.StationID, obs.Timestamp.UTC(), obs.RainfallMM, nullBucket(obs.TimeBucket), obs.CreatedAt.UTC(),
	).Scan(&obs.ID)
	return classify(err, obs.StationID)
}

// Get loads an observation owned by userID.
func (r *ObservationRepository) Get(ctx context.Context, userID, id int64) (*rainfall.ObservationView, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("observation repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, selectView+`
WHERE r.id = $1 AND r.user_id = $2`, id, userID)
	view, err := scanView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rainfall.ErrNotFound
	}
	return view, err
}

// Mutate locks the row, applies fn and writes the result in one transaction.
func (r *ObservationRepository) Mutate(ctx context.Context, userID, id int64, fn func(*rainfall.Observation) error) (*rainfall.Observation, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("observation repo: nil db")
	}
	if fn == nil {
		return nil, errors.New("observation repo: nil mutation")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRowContext(ctx, `
SELECT id, user_id, station_id, observed_at, rainfall_mm, time_range, created_at
FROM rain_records
WHERE id = $1 AND user_id = $2
FOR UPDATE`, id, userID)
	obs, err := scanObservation(row)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rainfall.ErrNotFound
		}
		return nil, err
	}

	if err := fn(obs); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := obs.Validate(); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
UPDATE rain_records
SET station_id = $3, observed_at = $4, rainfall_mm = $5, time_range = $6
WHERE id = $1 AND user_id = $2`,
		obs.ID, obs.UserID, obs.StationID, obs.Timestamp.UTC(), obs.RainfallMM, nullBucket(obs.TimeBucket))
	if err != nil {
		_ = tx.Rollback()
		return nil, classify(err, obs.StationID)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return obs, nil
}

// Delete removes an observation owned by userID and returns its last state.
func (r *ObservationRepository) Delete(ctx context.Context, userID, id int64) (*rainfall.Observation, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("observation repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
DELETE FROM rain_records
WHERE id = $1 AND user_id = $2
RETURNING id, user_id, station_id, observed_at, rainfall_mm, time_range, created_at`, id, userID)
	obs, err := scanObservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rainfall.ErrNotFound
	}
	return obs, err
}

// List returns observations matching query ordered by timestamp, id breaking ties.
func (r *ObservationRepository) List(ctx context.Context, query rainfall.Query) ([]rainfall.ObservationView, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("observation repo: nil db")
	}

	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if query.UserID != 0 {
		add("r.user_id = $%d", query.UserID)
	}
	if query.StationID != 0 {
		add("r.station_id = $%d", query.StationID)
	}
	if !query.From.IsZero() {
		add("r.observed_at >= $%d", query.From.UTC())
	}
	if !query.To.IsZero() {
		add("r.observed_at < $%d", query.To.UTC())
	}

	var sb strings.Builder
	sb.WriteString(selectView)
	if len(conds) > 0 {
		sb.WriteString("\nWHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}
	if query.Ascending {
		sb.WriteString("\nORDER BY r.observed_at ASC, r.id ASC")
	} else {
		sb.WriteString("\nORDER BY r.observed_at DESC, r.id DESC")
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rainfall.ObservationView
	for rows.Next() {
		view, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *view)
	}
	return out, rows.Err()
}

// HasStation reports whether any observation references the station.
func (r *ObservationRepository) HasStation(ctx context.Context, stationID int64) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("observation repo: nil db")
	}
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM rain_records WHERE station_id = $1)`, stationID).Scan(&exists)
	return exists, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(row rowScanner) (*rainfall.Observation, error) {
	var (
		obs    rainfall.Observation
		bucket sql.NullString
	)
	if err := row.Scan(&obs.ID, &obs.UserID, &obs.StationID, &obs.Timestamp, &obs.RainfallMM, &bucket, &obs.CreatedAt); err != nil {
		return nil, err
	}
	obs.Timestamp = obs.Timestamp.UTC()
	obs.CreatedAt = obs.CreatedAt.UTC()
	obs.TimeBucket = rainfall.TimeBucket(bucket.String)
	return &obs, nil
}

func scanView(row rowScanner) (*rainfall.ObservationView, error) {
	var (
		view   rainfall.ObservationView
		bucket sql.NullString
	)
	if err := row.Scan(
		&view.ID,
		&view.UserID,
		&view.StationID,
		&view.Timestamp,
		&view.RainfallMM,
		&bucket,
		&view.CreatedAt,
		&view.Username,
		&view.StationName,
	); err != nil {
		return nil, err
	}
	view.Timestamp = view.Timestamp.UTC()
	view.CreatedAt = view.CreatedAt.UTC()
	view.TimeBucket = rainfall.TimeBucket(bucket.String)
	return &view, nil
}

func nullBucket(b rainfall.TimeBucket) sql.NullString {
	return sql.NullString{String: string(b), Valid: b != ""}
}

func classify(err error, stationID int64) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return fmt.Errorf("%w: station %d does not exist", rainfall.ErrInvalidValue, stationID)
	}
	return err
}
