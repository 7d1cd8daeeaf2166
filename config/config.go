package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/prapanjan22-hub/garazzo/core/emergency"
	"github.com/prapanjan22-hub/garazzo/core/notify"
	"github.com/prapanjan22-hub/garazzo/infra/influx"
	"github.com/prapanjan22-hub/garazzo/infra/mqtt"
	"github.com/prapanjan22-hub/garazzo/infra/postgres"
	"github.com/prapanjan22-hub/garazzo/infra/redis"
)

type Config struct {
	MQTT      mqtt.Config      `json:"mqtt"`
	Database  postgres.Config  `json:"database"`
	Redis     redis.Config     `json:"redis"`
	Influx    influx.Config    `json:"influx"`
	Notify    notify.Config    `json:"notify"`
	Emergency emergency.Config `json:"emergency"`
	API       APIConfig        `json:"api"`
	Realtime  RealtimeConfig   `json:"realtime"`
	Metrics   MetricsConfig    `json:"metrics"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Redis.SetDefaults()
	cfg.Notify.SetDefaults()
	cfg.Emergency.SetDefaults()
	cfg.API.SetDefaults()
	cfg.Metrics.SetDefaults()
	if err := cfg.Database.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Notify.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
