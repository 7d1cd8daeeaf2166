// Package match implements geospatial nearest-neighbor matching of eligible
// responders to an incident location.
package match

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/prapanjan22-hub/garazzo/core/model"
)

// DefaultLimit caps how many candidates a query returns when the caller does
// not specify a limit.
const DefaultLimit = 20

// ResponderSource yields the responders eligible for matching: active role,
// known last location. Sources may pre-filter by area but the matcher always
// re-checks the radius.
type ResponderSource interface {
	EligibleResponders(ctx context.Context, near model.Location, radiusKm float64) ([]model.Responder, error)
}

// Matcher ranks eligible responders by great-circle distance.
type Matcher struct {
	source ResponderSource
}

// New creates a Matcher over the given source.
func New(source ResponderSource) (*Matcher, error) {
	if source == nil {
		return nil, fmt.Errorf("match: nil responder source")
	}
	return &Matcher{source: source}, nil
}

// FindNearby returns up to limit responders within radiusKm of loc, nearest
// first. Ties are broken by responder id so results are deterministic. An
// empty slice means no responders are available; it is not an error.
func (m *Matcher) FindNearby(ctx context.Context, loc model.Location, radiusKm float64, limit int) ([]model.Responder, error) {
	if err := loc.Validate(); err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	if radiusKm <= 0 {
		return nil, fmt.Errorf("match: radius must be positive, got %f", radiusKm)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	candidates, err := m.source.EligibleResponders(ctx, loc, radiusKm)
	if err != nil {
		return nil, fmt.Errorf("match: load responders: %w", err)
	}

	matched := make([]model.Responder, 0, len(candidates))
	for _, r := range candidates {
		if !r.Eligible() {
			continue
		}
		d := HaversineKm(loc, r.Location)
		if d > radiusKm {
			continue
		}
		r.DistanceKm = d
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].DistanceKm != matched[j].DistanceKm {
			return matched[i].DistanceKm < matched[j].DistanceKm
		}
		return matched[i].ID < matched[j].ID
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

const earthRadiusKm = 6371.0

// HaversineKm computes the great-circle distance between two points in
// kilometers.
func HaversineKm(a, b model.Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
