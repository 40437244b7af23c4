package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"drtnav/internal/model"
)

// Postgres backs the store with a Postgres database via the pgx stdlib driver.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS stops (
    stop_id   TEXT PRIMARY KEY,
    name      TEXT NOT NULL DEFAULT '',
    lat       DOUBLE PRECISION NOT NULL DEFAULT 0,
    lng       DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS vehicles (
    vehicle_id TEXT PRIMARY KEY,
    lat        DOUBLE PRECISION NOT NULL DEFAULT 0,
    lng        DOUBLE PRECISION NOT NULL DEFAULT 0,
    capacity   INT NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS requests (
    request_id          TEXT PRIMARY KEY,
    origin_stop_id      TEXT NOT NULL,
    dest_stop_id        TEXT NOT NULL,
    requested_pickup_at TIMESTAMPTZ NULL
);
CREATE INDEX IF NOT EXISTS requests_pickup_at_idx ON requests (requested_pickup_at);
`

// Migrate applies the embedded schema (dev helper, idempotent).
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

func (p *Postgres) ListRequests(ctx context.Context, filter TimeFilter) ([]model.Request, error) {
	q := `SELECT request_id, origin_stop_id, dest_stop_id, requested_pickup_at FROM requests`
	args := []any{}
	switch {
	case filter.Start != nil && filter.End != nil:
		q += ` WHERE requested_pickup_at BETWEEN $1 AND $2`
		args = append(args, *filter.Start, *filter.End)
	case filter.Start != nil:
		q += ` WHERE requested_pickup_at >= $1`
		args = append(args, *filter.Start)
	case filter.End != nil:
		q += ` WHERE requested_pickup_at <= $1`
		args = append(args, *filter.End)
	}
	q += ` ORDER BY request_id`
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()
	out := []model.Request{}
	for rows.Next() {
		var r model.Request
		var at sql.NullTime
		if err := rows.Scan(&r.ID, &r.OriginStopID, &r.DestStopID, &at); err != nil {
			return nil, err
		}
		if at.Valid {
			t := at.Time.UTC()
			r.RequestedPickupAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) ListVehicles(ctx context.Context, limit int) ([]model.Vehicle, error) {
	q := `SELECT vehicle_id, lat, lng, capacity FROM vehicles ORDER BY vehicle_id`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()
	out := []model.Vehicle{}
	for rows.Next() {
		var v model.Vehicle
		if err := rows.Scan(&v.ID, &v.Position.Lat, &v.Position.Lng, &v.Capacity); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (p *Postgres) GetStop(ctx context.Context, stopID string) (model.Stop, error) {
	var s model.Stop
	err := p.db.QueryRowContext(ctx,
		`SELECT stop_id, name, lat, lng FROM stops WHERE stop_id=$1`, stopID).
		Scan(&s.ID, &s.Name, &s.Position.Lat, &s.Position.Lng)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Stop{}, fmt.Errorf("stop %s: %w", stopID, ErrNotFound)
	}
	if err != nil {
		return model.Stop{}, err
	}
	return s, nil
}

func (p *Postgres) UpsertStops(ctx context.Context, stops []model.Stop) error {
	return p.inTx(ctx, func(tx *sql.Tx) error {
		for _, s := range stops {
			_, err := tx.ExecContext(ctx, `INSERT INTO stops (stop_id, name, lat, lng) VALUES ($1,$2,$3,$4)
ON CONFLICT (stop_id) DO UPDATE SET name=EXCLUDED.name, lat=EXCLUDED.lat, lng=EXCLUDED.lng`,
				s.ID, s.Name, s.Position.Lat, s.Position.Lng)
			if err != nil {
				return fmt.Errorf("upsert stop %s: %w", s.ID, err)
			}
		}
		return nil
	})
}

func (p *Postgres) UpsertVehicles(ctx context.Context, vehicles []model.Vehicle) error {
	return p.inTx(ctx, func(tx *sql.Tx) error {
		for _, v := range vehicles {
			_, err := tx.ExecContext(ctx, `INSERT INTO vehicles (vehicle_id, lat, lng, capacity) VALUES ($1,$2,$3,$4)
ON CONFLICT (vehicle_id) DO UPDATE SET lat=EXCLUDED.lat, lng=EXCLUDED.lng, capacity=EXCLUDED.capacity`,
				v.ID, v.Position.Lat, v.Position.Lng, v.Capacity)
			if err != nil {
				return fmt.Errorf("upsert vehicle %s: %w", v.ID, err)
			}
		}
		return nil
	})
}

func (p *Postgres) InsertRequests(ctx context.Context, requests []model.Request) error {
	return p.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range requests {
			var at any
			if r.RequestedPickupAt != nil {
				at = r.RequestedPickupAt.UTC()
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO requests (request_id, origin_stop_id, dest_stop_id, requested_pickup_at)
VALUES ($1,$2,$3,$4) ON CONFLICT (request_id) DO NOTHING`,
				r.ID, r.OriginStopID, r.DestStopID, at)
			if err != nil {
				return fmt.Errorf("insert request %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

func (p *Postgres) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
