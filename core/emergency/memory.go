package emergency

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prapanjan22-hub/garazzo/core/model"
)

// MemoryStore is an in-memory IncidentStore. It mirrors the conditional
// update semantics of the SQL store and is used in tests and the alert
// smoke command.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]model.Incident
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]model.Incident{}}
}

func (s *MemoryStore) Create(_ context.Context, inc *model.Incident) error {
	s.mu.Lock()
	s.data[inc.ID] = *inc
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.data[id]
	if !ok {
		return model.Incident{}, ErrNotFound
	}
	return inc, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, from, to model.Status, responderID string) (model.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.data[id]
	if !ok {
		return model.Incident{}, ErrNotFound
	}
	if inc.Status != from {
		return model.Incident{}, ErrInvalidTransition
	}
	inc.Status = to
	if responderID != "" {
		inc.ResponderID = responderID
	}
	inc.UpdatedAt = time.Now().UTC()
	s.data[id] = inc
	return inc, nil
}

func (s *MemoryStore) Active(_ context.Context) ([]model.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Incident
	for _, inc := range s.data {
		if inc.Status == model.StatusActive {
			out = append(out, inc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Stats(_ context.Context, since time.Time) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st Stats
	var respondedMinutes float64
	var responded int
	for _, inc := range s.data {
		if inc.CreatedAt.Before(since) {
			continue
		}
		st.Total++
		switch inc.Status {
		case model.StatusActive:
			st.Active++
		case model.StatusResponded:
			st.Responded++
		case model.StatusResolved:
			st.Resolved++
		}
		if inc.Status == model.StatusResponded || inc.Status == model.StatusResolved {
			respondedMinutes += inc.UpdatedAt.Sub(inc.CreatedAt).Minutes()
			responded++
		}
	}
	if responded > 0 {
		st.AvgResponseMinutes = respondedMinutes / float64(responded)
	}
	return st, nil
}

// MemoryLiveStore is an in-memory LiveStore with per-entry expiry.
type MemoryLiveStore struct {
	mu   sync.Mutex
	data map[string]liveEntry
	now  func() time.Time
}

type liveEntry struct {
	inc       model.Incident
	expiresAt time.Time
}

// NewMemoryLiveStore creates an empty MemoryLiveStore.
func NewMemoryLiveStore() *MemoryLiveStore {
	return &MemoryLiveStore{data: map[string]liveEntry{}, now: time.Now}
}

func (s *MemoryLiveStore) Put(_ context.Context, inc model.Incident, ttl time.Duration) error {
	s.mu.Lock()
	s.data[inc.ID] = liveEntry{inc: inc, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryLiveStore) Get(_ context.Context, id string) (model.Incident, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[id]
	if !ok || !s.now().Before(e.expiresAt) {
		delete(s.data, id)
		return model.Incident{}, false, nil
	}
	return e.inc, true, nil
}

func (s *MemoryLiveStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.data, id)
	s.mu.Unlock()
	return nil
}
