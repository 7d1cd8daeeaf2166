package model

// Responder is an eligible service provider considered for matching.
// It is a read-only projection; DistanceKm is computed during matching and
// never stored.
type Responder struct {
	ID         string
	Name       string
	Phone      string
	PushToken  string
	Location   Location
	Role       string
	DistanceKm float64
}

// Eligible reports whether the responder may participate in matching. Only
// service-provider roles with a known location qualify.
func (r Responder) Eligible() bool {
	if r.ID == "" {
		return false
	}
	if r.Role != "mechanic" && r.Role != "garage" {
		return false
	}
	return r.Location.Latitude != 0 || r.Location.Longitude != 0
}
