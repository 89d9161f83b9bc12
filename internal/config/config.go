package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the signal engine.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Clients  ClientsConfig  `yaml:"clients"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Storage  StorageConfig  `yaml:"storage"`
	Rules    RulesConfig    `yaml:"rules"`
	Logging  LoggingConfig  `yaml:"logging"`
	Cache    CacheConfig    `yaml:"cache"`
}

// ServerConfig controls HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// ClientsConfig groups external integrations.
type ClientsConfig struct {
	Tracker TrackerClientConfig `yaml:"tracker"`
}

// TrackerClientConfig configures access to the error-tracker APIs.
type TrackerClientConfig struct {
	BaseURL    string        `yaml:"baseURL"`
	SearchPath string        `yaml:"searchPath"`
	IssuePath  string        `yaml:"issuePath"`
	EventsPath string        `yaml:"eventsPath"`
	StatusPath string        `yaml:"statusPath"`
	AuthToken  string        `yaml:"authToken"`
	Timeout    time.Duration `yaml:"timeout"`
}

// AnalysisConfig bounds the analysis fan-out and comparison windows.
type AnalysisConfig struct {
	WatchedServices      []string      `yaml:"watchedServices"`
	MaxConcurrentQueries int           `yaml:"maxConcurrentQueries"`
	QueueLookback        time.Duration `yaml:"queueLookback"`
	QueueDepthThreshold  int64         `yaml:"queueDepthThreshold"`
	DeadLetterThreshold  int64         `yaml:"deadLetterThreshold"`
	SpikeMultiplier      float64       `yaml:"spikeMultiplier"`
	RecentWindow         time.Duration `yaml:"recentWindow"`
	BaselineWindow       time.Duration `yaml:"baselineWindow"`
	PatternLookback      time.Duration `yaml:"patternLookback"`
}

// StorageConfig locates the sqlite database backing the outbox and diagnosis
// history.
type StorageConfig struct {
	DBPath string `yaml:"dbPath"`
}

// RulesConfig controls rule-pack and topology loading for the diagnoser.
type RulesConfig struct {
	PackPath     string `yaml:"packPath"`
	TopologyPath string `yaml:"topologyPath"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls Valkey-backed caching of tracker searches.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	SearchTTL    time.Duration `yaml:"searchTTL"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SIGNAL_ENGINE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Clients: ClientsConfig{
			Tracker: TrackerClientConfig{
				SearchPath: "/api/0/issues/search",
				IssuePath:  "/api/0/issues/get",
				EventsPath: "/api/0/issues/events",
				StatusPath: "/api/0/issues/status",
				Timeout:    5 * time.Second,
			},
		},
		Analysis: AnalysisConfig{
			MaxConcurrentQueries: 6,
			QueueLookback:        time.Hour,
			QueueDepthThreshold:  500,
			SpikeMultiplier:      3,
			RecentWindow:         time.Hour,
			BaselineWindow:       24 * time.Hour,
			PatternLookback:      7 * 24 * time.Hour,
		},
		Storage: StorageConfig{DBPath: "signal-engine.db"},
		Rules: RulesConfig{
			PackPath:     "configs/patterns/default.yaml",
			TopologyPath: "configs/topology.yaml",
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			SearchTTL:    2 * time.Minute,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SIGNAL_ENGINE_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("SIGNAL_ENGINE_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("SIGNAL_ENGINE_TRACKER_BASE_URL"); v != "" {
		cfg.Clients.Tracker.BaseURL = v
	}
	if v := os.Getenv("SIGNAL_ENGINE_TRACKER_AUTH_TOKEN"); v != "" {
		cfg.Clients.Tracker.AuthToken = v
	}
	if v := os.Getenv("SIGNAL_ENGINE_WATCHED_SERVICES"); v != "" {
		services := strings.Split(v, ",")
		cfg.Analysis.WatchedServices = cfg.Analysis.WatchedServices[:0]
		for _, s := range services {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				cfg.Analysis.WatchedServices = append(cfg.Analysis.WatchedServices, trimmed)
			}
		}
	}
	if v := os.Getenv("SIGNAL_ENGINE_QUEUE_DEPTH_THRESHOLD"); v != "" {
		if depth, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Analysis.QueueDepthThreshold = depth
		}
	}
	if v := os.Getenv("SIGNAL_ENGINE_SPIKE_MULTIPLIER"); v != "" {
		if mult, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Analysis.SpikeMultiplier = mult
		}
	}
	if v := os.Getenv("SIGNAL_ENGINE_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("SIGNAL_ENGINE_RULES_PATH"); v != "" {
		cfg.Rules.PackPath = v
	}
	if v := os.Getenv("SIGNAL_ENGINE_TOPOLOGY_PATH"); v != "" {
		cfg.Rules.TopologyPath = v
	}
	if v := os.Getenv("SIGNAL_ENGINE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SIGNAL_ENGINE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("SIGNAL_ENGINE_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("SIGNAL_ENGINE_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("SIGNAL_ENGINE_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("SIGNAL_ENGINE_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("SIGNAL_ENGINE_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("SIGNAL_ENGINE_CACHE_TLS"); strings.EqualFold(v, "true") || strings.EqualFold(v, "1") {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("SIGNAL_ENGINE_CACHE_SEARCH_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.SearchTTL = d
		}
	}
}
