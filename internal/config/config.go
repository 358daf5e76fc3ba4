package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level    string `yaml:"level"`
		Encoding string `yaml:"encoding"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		PointsPerCorrect       int    `yaml:"points_per_correct"`
		BroadcastCorrectAnswer bool   `yaml:"broadcast_correct_answer"`
		CodeCacheTTL           string `yaml:"code_cache_ttl"`
	} `yaml:"quiz"`
}

// Default is the configuration used when no file is present: everything in
// memory, JSON logs at info.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Log.Encoding = "json"
	cfg.Quiz.PointsPerCorrect = 100
	cfg.Quiz.CodeCacheTTL = "10m"
	return cfg
}

// Load reads YAML config from path over the defaults. A missing file is not
// an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
