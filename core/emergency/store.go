package emergency

import (
	"context"
	"errors"
	"time"

	"github.com/prapanjan22-hub/garazzo/core/model"
)

// ErrNotFound is returned when no incident exists for the given id.
var ErrNotFound = errors.New("incident not found")

// ErrInvalidTransition is returned when a status change violates the
// incident state machine, including any attempt to leave a terminal state.
var ErrInvalidTransition = errors.New("invalid status transition")

// Stats summarises incident activity over a trailing window.
type Stats struct {
	Total              int     `json:"total"`
	Active             int     `json:"active"`
	Responded          int     `json:"responded"`
	Resolved           int     `json:"resolved"`
	AvgResponseMinutes float64 `json:"avg_response_minutes"`
}

// IncidentStore is the durable record of incidents.
type IncidentStore interface {
	Create(ctx context.Context, inc *model.Incident) error
	Get(ctx context.Context, id string) (model.Incident, error)
	// UpdateStatus transitions the incident from the expected pre-state to
	// the target state atomically. When the stored status no longer matches
	// from (a concurrent writer won the race) it returns ErrInvalidTransition
	// without mutating anything.
	UpdateStatus(ctx context.Context, id string, from, to model.Status, responderID string) (model.Incident, error)
	// Active returns all currently active incidents, newest first.
	Active(ctx context.Context) ([]model.Incident, error)
	Stats(ctx context.Context, since time.Time) (Stats, error)
}

// LiveStore is the ephemeral TTL-bound mirror used for fast live-status
// reads.
type LiveStore interface {
	Put(ctx context.Context, inc model.Incident, ttl time.Duration) error
	Get(ctx context.Context, id string) (model.Incident, bool, error)
	Delete(ctx context.Context, id string) error
}
