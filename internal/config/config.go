package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Addr           string `yaml:"addr"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms"`
	IdleTimeoutMS  int    `yaml:"idle_timeout_ms"`
	MaxBodyBytes   int64  `yaml:"max_body_bytes"`
}

type Observability struct {
	LogLevel       string `yaml:"log_level"`       // "debug","info","warn","error"
	PrometheusPath string `yaml:"prometheus_path"` // e.g. "/metrics"
}

type Store struct {
	Backend string `yaml:"backend"` // "memory" or "redis"
	Redis   struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

// Policy mirrors ratelimit.Policy in yaml form.
type Policy struct {
	Name                 string   `yaml:"name"`
	Limit                int      `yaml:"limit"`
	WindowSeconds        int      `yaml:"window_seconds"`
	Burst                int      `yaml:"burst"`
	Cost                 int      `yaml:"cost"`
	Algorithm            string   `yaml:"algorithm"`
	KeyStrategy          string   `yaml:"key_strategy"`
	Exemptions           []string `yaml:"exemptions"`
	BlockDurationSeconds int      `yaml:"block_duration_seconds"`
	Precision            int      `yaml:"precision"`
}

type Limits struct {
	Default          Policy   `yaml:"default"`
	TrustedProxies   []string `yaml:"trusted_proxies"`
	ExemptPrivateIPs *bool    `yaml:"exempt_private_ips"` // nil means true
}

type Quota struct {
	Name   string `yaml:"name"`
	Limit  int    `yaml:"limit"`
	Period string `yaml:"period"` // hourly|daily|monthly|yearly
}

type Penalty struct {
	Threshold       float64 `yaml:"threshold"`
	DurationSeconds int     `yaml:"duration_seconds"`
	DecayPerHour    float64 `yaml:"decay_per_hour"`
	Multiplier      float64 `yaml:"multiplier"`
}

type APIKey struct {
	ID     string `yaml:"id"`
	Secret string `yaml:"secret"`
	Plan   string `yaml:"plan"`
}

type Auth struct {
	Header string   `yaml:"header"`
	Keys   []APIKey `yaml:"keys"`
}

type Root struct {
	Server        Server        `yaml:"server"`
	Observability Observability `yaml:"observability"`
	Store         Store         `yaml:"store"`
	Auth          Auth          `yaml:"auth"`
	Limits        Limits        `yaml:"limits"`
	Quota         Quota         `yaml:"quota"`
	Penalty       Penalty       `yaml:"penalty"`
}

func (s Server) ReadTimeout() time.Duration {
	if s.ReadTimeoutMS == 0 {
		return 5 * time.Second
	}
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

func (s Server) WriteTimeout() time.Duration {
	if s.WriteTimeoutMS == 0 {
		return 10 * time.Second
	}
	return time.Duration(s.WriteTimeoutMS) * time.Millisecond
}

func (s Server) IdleTimeout() time.Duration {
	if s.IdleTimeoutMS == 0 {
		return 60 * time.Second
	}
	return time.Duration(s.IdleTimeoutMS) * time.Millisecond
}

func (s Server) MaxBody() int64 {
	if s.MaxBodyBytes == 0 {
		return 10 << 20 // 10MB
	}
	return s.MaxBodyBytes
}

func (l Limits) ExemptPrivate() bool {
	if l.ExemptPrivateIPs == nil {
		return true
	}
	return *l.ExemptPrivateIPs
}

func Load(path string) (*Root, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Root
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.PrometheusPath == "" {
		cfg.Observability.PrometheusPath = "/metrics"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}
	if cfg.Store.Redis.Addr == "" {
		cfg.Store.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.Auth.Header == "" {
		cfg.Auth.Header = "X-API-Key"
	}
	if cfg.Limits.Default.Name == "" {
		cfg.Limits.Default.Name = "default"
	}
	if cfg.Limits.Default.Limit <= 0 {
		cfg.Limits.Default.Limit = 60
	}
	if cfg.Limits.Default.WindowSeconds <= 0 {
		cfg.Limits.Default.WindowSeconds = 60
	}
	if cfg.Penalty.Threshold <= 0 {
		cfg.Penalty.Threshold = 10
	}
	if cfg.Penalty.DurationSeconds <= 0 {
		cfg.Penalty.DurationSeconds = 900
	}
	if cfg.Penalty.DecayPerHour <= 0 {
		cfg.Penalty.DecayPerHour = 1
	}
	if cfg.Penalty.Multiplier <= 0 {
		cfg.Penalty.Multiplier = 0.5
	}

	return &cfg, nil
}
