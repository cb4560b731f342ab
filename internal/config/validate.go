package config

import (
	"fmt"
	"net/url"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "server.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Server.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Server.Bind != "" && !slices.Contains(validBinds, cfg.Server.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "server.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Server.Bind),
		})
	}
	if cfg.Server.Bind == "custom" && cfg.Server.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "server.customBindHost",
			Message: "required when bind is \"custom\"",
		})
	}

	validStores := []string{"sqlite", "memory"}
	if cfg.Storage.Store != "" && !slices.Contains(validStores, cfg.Storage.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "storage.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.Storage.Store),
		})
	}

	for path, v := range map[string]int{
		"scoring.exploredWeight": cfg.Scoring.ExploredWeight,
		"scoring.exploredCap":    cfg.Scoring.ExploredCap,
		"scoring.lockedWeight":   cfg.Scoring.LockedWeight,
		"scoring.lockedCap":      cfg.Scoring.LockedCap,
		"scoring.inquiryWeight":  cfg.Scoring.InquiryWeight,
		"scoring.inquiryCap":     cfg.Scoring.InquiryCap,
	} {
		if v < 0 {
			issues = append(issues, ValidationIssue{
				Path:    path,
				Message: fmt.Sprintf("must be non-negative, got %d", v),
			})
		}
	}

	if cfg.Sync.RemoteURL != "" {
		if u, err := url.Parse(cfg.Sync.RemoteURL); err != nil || u.Scheme == "" || u.Host == "" {
			issues = append(issues, ValidationIssue{
				Path:    "sync.remoteUrl",
				Message: fmt.Sprintf("must be an absolute URL, got %q", cfg.Sync.RemoteURL),
			})
		}
	}
	if cfg.Sync.IntervalSeconds < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "sync.intervalSeconds",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Sync.IntervalSeconds),
		})
	}
	if cfg.Sync.BatchSize < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "sync.batchSize",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Sync.BatchSize),
		})
	}

	if cfg.Feed.Capacity < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "feed.capacity",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Feed.Capacity),
		})
	}
	if cfg.Feed.Reconnect.MaxAttempts < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "feed.reconnect.maxAttempts",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Feed.Reconnect.MaxAttempts),
		})
	}
	if cfg.Feed.Reconnect.MaxDelayMs < cfg.Feed.Reconnect.BaseDelayMs {
		issues = append(issues, ValidationIssue{
			Path:    "feed.reconnect.maxDelayMs",
			Message: "must be at least baseDelayMs",
		})
	}

	if cfg.Scan.TimeoutSeconds < 1 || cfg.Scan.TimeoutSeconds > 30 {
		issues = append(issues, ValidationIssue{
			Path:    "scan.timeoutSeconds",
			Message: fmt.Sprintf("must be 1-30, got %d", cfg.Scan.TimeoutSeconds),
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	return issues
}
