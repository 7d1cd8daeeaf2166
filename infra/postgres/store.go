// Package postgres implements the durable incident store and the eligible
// responder source over a pgx connection pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prapanjan22-hub/garazzo/core/emergency"
	"github.com/prapanjan22-hub/garazzo/core/logger"
	"github.com/prapanjan22-hub/garazzo/core/model"
)

// Config defines the database connection parameters.
type Config struct {
	URL string `json:"url"`
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("database url is required")
	}
	return nil
}

// Store persists incidents and serves responder candidates.
type Store struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

// Connect creates the pool, verifies connectivity and returns a Store.
func Connect(ctx context.Context, cfg Config, log logger.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

// NewStore wraps an existing pool, e.g. one shared with other repositories.
func NewStore(pool *pgxpool.Pool, log logger.Logger) *Store {
	return &Store{pool: pool, log: log}
}

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }

const incidentColumns = `
	id, device_id, user_id, latitude, longitude, address,
	category, severity, description, vehicle_data, status,
	COALESCE(responder_id, ''), created_at, updated_at`

// Create inserts a new incident row.
func (s *Store) Create(ctx context.Context, inc *model.Incident) error {
	vehicleData, err := json.Marshal(inc.VehicleData)
	if err != nil {
		return fmt.Errorf("encode vehicle data: %w", err)
	}
	query := `
		INSERT INTO incidents (
			id, device_id, user_id, latitude, longitude, address,
			category, severity, description, vehicle_data, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err = s.pool.Exec(ctx, query,
		inc.ID,
		inc.DeviceID,
		inc.UserID,
		inc.Location.Latitude,
		inc.Location.Longitude,
		inc.Location.Address,
		inc.Category,
		inc.Severity.String(),
		inc.Description,
		vehicleData,
		string(inc.Status),
		inc.CreatedAt,
		inc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

// Get returns the incident by id.
func (s *Store) Get(ctx context.Context, id string) (model.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`
	inc, err := scanIncident(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Incident{}, emergency.ErrNotFound
		}
		return model.Incident{}, fmt.Errorf("get incident: %w", err)
	}
	return inc, nil
}

// UpdateStatus applies the transition only when the stored status still
// matches the expected pre-state; concurrent writers race on the condition
// and exactly one wins.
func (s *Store) UpdateStatus(ctx context.Context, id string, from, to model.Status, responderID string) (model.Incident, error) {
	query := `
		UPDATE incidents
		SET status = $1,
		    responder_id = COALESCE(NULLIF($2, ''), responder_id),
		    updated_at = NOW()
		WHERE id = $3 AND status = $4
		RETURNING ` + incidentColumns
	inc, err := scanIncident(s.pool.QueryRow(ctx, query, string(to), responderID, id, string(from)))
	if err == nil {
		return inc, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Incident{}, fmt.Errorf("update incident status: %w", err)
	}
	// Distinguish a missing incident from a lost transition race.
	if _, gerr := s.Get(ctx, id); gerr != nil {
		return model.Incident{}, gerr
	}
	return model.Incident{}, emergency.ErrInvalidTransition
}

// Active returns all active incidents, newest first.
func (s *Store) Active(ctx context.Context) ([]model.Incident, error) {
	query := `SELECT ` + incidentColumns + `
		FROM incidents WHERE status = 'active' ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active incidents: %w", err)
	}
	defer rows.Close()

	var out []model.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		out = append(out, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active incidents: %w", err)
	}
	return out, nil
}

// Stats reports incident counts and the average response time since the
// given instant.
func (s *Store) Stats(ctx context.Context, since time.Time) (emergency.Stats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE status = 'responded'),
			COUNT(*) FILTER (WHERE status = 'resolved'),
			COALESCE(AVG(EXTRACT(EPOCH FROM (updated_at - created_at)) / 60)
				FILTER (WHERE status IN ('responded', 'resolved')), 0)
		FROM incidents
		WHERE created_at >= $1`
	var st emergency.Stats
	err := s.pool.QueryRow(ctx, query, since).Scan(
		&st.Total, &st.Active, &st.Responded, &st.Resolved, &st.AvgResponseMinutes)
	if err != nil {
		return emergency.Stats{}, fmt.Errorf("incident stats: %w", err)
	}
	return st, nil
}

// EligibleResponders returns active service providers with a known location
// within radiusKm of the given point. The haversine pre-filter runs in SQL;
// the matcher re-checks and ranks the result.
func (s *Store) EligibleResponders(ctx context.Context, near model.Location, radiusKm float64) ([]model.Responder, error) {
	query := `
		SELECT id, name, phone, COALESCE(push_token, ''), latitude, longitude, role
		FROM responders
		WHERE role IN ('mechanic', 'garage')
		  AND status = 'active'
		  AND latitude IS NOT NULL
		  AND longitude IS NOT NULL
		  AND 2 * 6371 * ASIN(SQRT(
		        POWER(SIN(RADIANS(latitude - $1) / 2), 2) +
		        COS(RADIANS($1)) * COS(RADIANS(latitude)) *
		        POWER(SIN(RADIANS(longitude - $2) / 2), 2)
		      )) <= $3
		ORDER BY id`
	rows, err := s.pool.Query(ctx, query, near.Latitude, near.Longitude, radiusKm)
	if err != nil {
		return nil, fmt.Errorf("query responders: %w", err)
	}
	defer rows.Close()

	var out []model.Responder
	for rows.Next() {
		var r model.Responder
		if err := rows.Scan(&r.ID, &r.Name, &r.Phone, &r.PushToken,
			&r.Location.Latitude, &r.Location.Longitude, &r.Role); err != nil {
			return nil, fmt.Errorf("scan responder: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query responders: %w", err)
	}
	return out, nil
}

func scanIncident(row pgx.Row) (model.Incident, error) {
	var (
		inc         model.Incident
		severity    string
		status      string
		vehicleData []byte
	)
	err := row.Scan(
		&inc.ID,
		&inc.DeviceID,
		&inc.UserID,
		&inc.Location.Latitude,
		&inc.Location.Longitude,
		&inc.Location.Address,
		&inc.Category,
		&severity,
		&inc.Description,
		&vehicleData,
		&status,
		&inc.ResponderID,
		&inc.CreatedAt,
		&inc.UpdatedAt,
	)
	if err != nil {
		return model.Incident{}, err
	}
	inc.Severity = model.ParseSeverity(severity)
	inc.Status = model.Status(status)
	if len(vehicleData) > 0 {
		if err := json.Unmarshal(vehicleData, &inc.VehicleData); err != nil {
			return model.Incident{}, fmt.Errorf("decode vehicle data: %w", err)
		}
	}
	return inc, nil
}
