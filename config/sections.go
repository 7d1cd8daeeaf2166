package config

// APIConfig defines the public HTTP surface.
type APIConfig struct {
	// Addr is the listen address of the JSON API and the websocket endpoint.
	Addr string `json:"addr"`
	// Token, when non-empty, is required as a bearer token on API requests.
	Token string `json:"token"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// RealtimeConfig tunes the websocket endpoint.
type RealtimeConfig struct {
	// Token, when non-empty, must be passed as the `token` query parameter
	// on connection upgrade.
	Token string `json:"token"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// SetDefaults applies sane defaults.
func (c *MetricsConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":9090"
	}
}
