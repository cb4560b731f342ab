package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so tokens can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Server.Auth.Token = expandEnvVars(cfg.Server.Auth.Token)
	cfg.Sync.Token = expandEnvVars(cfg.Sync.Token)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields with sensible defaults. A config file
// that sets only a few keys gets the Defaults() values for the rest.
func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = def.Server.Bind
	}
	if cfg.Server.RateLimit.RequestsPerMinute == 0 {
		cfg.Server.RateLimit.RequestsPerMinute = def.Server.RateLimit.RequestsPerMinute
	}
	if cfg.Storage.Store == "" {
		cfg.Storage.Store = def.Storage.Store
	}
	if cfg.Scoring == (ScoringConfig{}) {
		cfg.Scoring = def.Scoring
	}
	if cfg.Trial.LengthDays == 0 {
		cfg.Trial.LengthDays = def.Trial.LengthDays
	}
	if cfg.Trial.DailyScans == 0 {
		cfg.Trial.DailyScans = def.Trial.DailyScans
	}
	if cfg.Trial.DailyAgents == 0 {
		cfg.Trial.DailyAgents = def.Trial.DailyAgents
	}
	if len(cfg.Trial.AlwaysAllow) == 0 {
		cfg.Trial.AlwaysAllow = def.Trial.AlwaysAllow
	}
	if cfg.Sync.IntervalSeconds == 0 {
		cfg.Sync.IntervalSeconds = def.Sync.IntervalSeconds
	}
	if cfg.Sync.BatchSize == 0 {
		cfg.Sync.BatchSize = def.Sync.BatchSize
	}
	if cfg.Feed.Capacity == 0 {
		cfg.Feed.Capacity = def.Feed.Capacity
	}
	if cfg.Feed.HeartbeatSeconds == 0 {
		cfg.Feed.HeartbeatSeconds = def.Feed.HeartbeatSeconds
	}
	if cfg.Feed.Reconnect.BaseDelayMs == 0 {
		cfg.Feed.Reconnect.BaseDelayMs = def.Feed.Reconnect.BaseDelayMs
	}
	if cfg.Feed.Reconnect.MaxDelayMs == 0 {
		cfg.Feed.Reconnect.MaxDelayMs = def.Feed.Reconnect.MaxDelayMs
	}
	if cfg.Feed.Reconnect.MaxAttempts == 0 {
		cfg.Feed.Reconnect.MaxAttempts = def.Feed.Reconnect.MaxAttempts
	}
	if cfg.Scan.TimeoutSeconds == 0 {
		cfg.Scan.TimeoutSeconds = def.Scan.TimeoutSeconds
	}
	if cfg.Scan.MaxBodyBytes == 0 {
		cfg.Scan.MaxBodyBytes = def.Scan.MaxBodyBytes
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
}

// applyEnvOverrides reads PERCY_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PERCY_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PERCY_SERVER_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("PERCY_AUTH_TOKEN"); v != "" {
		cfg.Server.Auth.Token = v
	}
	if v := os.Getenv("PERCY_SYNC_REMOTE_URL"); v != "" {
		cfg.Sync.RemoteURL = v
	}
	if v := os.Getenv("PERCY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
