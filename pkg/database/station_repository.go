package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

const stationColumns = "id, name, url, COALESCE(description, ''), is_default, created_at, updated_at"

// stationRepository implements StationRepository
type stationRepository struct {
	db *sql.DB
}

// NewStationRepository creates a station repository backed by db
func NewStationRepository(db *sql.DB) StationRepository {
	return &stationRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStation(row rowScanner) (*Station, error) {
	s := &Station{}
	if err := row.Scan(&s.ID, &s.Name, &s.URL, &s.Description, &s.IsDefault, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *stationRepository) FindAll(ctx context.Context) ([]*Station, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+stationColumns+" FROM stations ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	stations := []*Station{}
	for rows.Next() {
		s, err := scanStation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		stations = append(stations, s)
	}
	return stations, rows.Err()
}

func (r *stationRepository) findOne(ctx context.Context, where string, args ...any) (*Station, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+stationColumns+" FROM stations WHERE "+where+" LIMIT 1", args...)
	s, err := scanStation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query station: %w", err)
	}
	return s, nil
}

func (r *stationRepository) FindByID(ctx context.Context, id int64) (*Station, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *stationRepository) FindByName(ctx context.Context, name string) (*Station, error) {
	return r.findOne(ctx, "name = ? COLLATE NOCASE", name)
}

func (r *stationRepository) FindDefault(ctx context.Context) (*Station, error) {
	return r.findOne(ctx, "is_default = 1 ORDER BY id")
}

// Create inserts station and fills in its ID and timestamps. Creating a
// default station clears the flag on every other one.
func (r *stationRepository) Create(ctx context.Context, station *Station) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if station.IsDefault {
		if _, err := tx.ExecContext(ctx, "UPDATE stations SET is_default = 0 WHERE is_default = 1"); err != nil {
			return fmt.Errorf("failed to clear default station: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO stations (name, url, description, is_default) VALUES (?, ?, ?, ?)",
		station.Name, station.URL, nullString(station.Description), station.IsDefault)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrStationExists, station.Name)
		}
		return fmt.Errorf("failed to insert station: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read station id: %w", err)
	}

	row := tx.QueryRowContext(ctx, "SELECT created_at, updated_at FROM stations WHERE id = ?", id)
	if err := row.Scan(&station.CreatedAt, &station.UpdatedAt); err != nil {
		return fmt.Errorf("failed to read station timestamps: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit station: %w", err)
	}

	station.ID = id
	return nil
}

func (r *stationRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM stations WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete station: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *stationRepository) SetDefault(ctx context.Context, id int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM stations WHERE id = ?", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up station: %w", err)
	}
	if exists == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE stations SET is_default = 0, updated_at = CURRENT_TIMESTAMP WHERE is_default = 1 AND id != ?", id); err != nil {
		return false, fmt.Errorf("failed to clear default station: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE stations SET is_default = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?", id); err != nil {
		return false, fmt.Errorf("failed to set default station: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit default station: %w", err)
	}
	return true, nil
}

func (r *stationRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM stations").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count stations: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
