package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 18790,
			Bind: "loopback",
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 10,
			},
		},
		Storage: StorageConfig{
			Store: "sqlite",
		},
		Scoring: ScoringConfig{
			ExploredWeight:          5,
			ExploredCap:             25,
			LockedWeight:            10,
			LockedCap:               30,
			InquiryWeight:           15,
			InquiryCap:              30,
			SessionBonus:            5,
			SessionBonusMinutes:     5,
			SessionBonusLate:        10,
			SessionBonusLateMinutes: 15,
			MessageBonus:            5,
			MessageBonusAfter:       3,
			MessageBonusLate:        5,
			MessageBonusLateAfter:   10,
		},
		Trial: TrialConfig{
			LengthDays:  7,
			DailyScans:  3,
			DailyAgents: 10,
			AlwaysAllow: []string{"percy"},
		},
		Sync: SyncConfig{
			IntervalSeconds: 30,
			BatchSize:       10,
		},
		Feed: FeedConfig{
			Capacity:         50,
			HeartbeatSeconds: 30,
			Reconnect: ReconnectConfig{
				BaseDelayMs: 500,
				MaxDelayMs:  8000,
				MaxAttempts: 5,
			},
		},
		Scan: ScanConfig{
			TimeoutSeconds: 8,
			MaxBodyBytes:   1 << 20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
