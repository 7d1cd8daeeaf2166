package mqtt

import (
	"fmt"
	"sync"
)

// MockPublisher records incident events in memory. It is used in tests and
// by the alert smoke command.
type MockPublisher struct {
	mu       sync.Mutex
	Events   map[string][]any
	FailIDs  map[string]bool
	Received []string
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		Events:  make(map[string][]any),
		FailIDs: make(map[string]bool),
	}
}

// PublishIncidentEvent records the event or returns an error if configured
// to fail for the incident id.
func (m *MockPublisher) PublishIncidentEvent(incidentID string, event any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[incidentID] {
		return fmt.Errorf("publish failed")
	}
	m.Events[incidentID] = append(m.Events[incidentID], event)
	m.Received = append(m.Received, incidentID)
	return nil
}
