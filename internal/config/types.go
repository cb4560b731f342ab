package config

// Config is the root configuration for the Percy engagement engine.
type Config struct {
	Server  ServerConfig  `yaml:"server,omitempty"`
	Storage StorageConfig `yaml:"storage,omitempty"`
	Scoring ScoringConfig `yaml:"scoring,omitempty"`
	Trial   TrialConfig   `yaml:"trial,omitempty"`
	Sync    SyncConfig    `yaml:"sync,omitempty"`
	Feed    FeedConfig    `yaml:"feed,omitempty"`
	Scan    ScanConfig    `yaml:"scan,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// ServerConfig controls the HTTP gateway.
type ServerConfig struct {
	Port           int             `yaml:"port,omitempty"`
	Bind           string          `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string          `yaml:"customBindHost,omitempty"`
	Auth           AuthConfig      `yaml:"auth,omitempty"`
	AllowedOrigins []string        `yaml:"allowedOrigins,omitempty"`
	RateLimit      RateLimitConfig `yaml:"rateLimit,omitempty"`
}

// AuthConfig holds the bearer credential protecting trial and publish routes.
type AuthConfig struct {
	Token string `yaml:"token,omitempty"`
}

// RateLimitConfig bounds requests per client IP on the scan endpoint.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requestsPerMinute,omitempty"`
}

// StorageConfig selects and locates the backing store.
type StorageConfig struct {
	Store string `yaml:"store,omitempty"` // "sqlite" | "memory"
	Path  string `yaml:"path,omitempty"`  // sqlite file; defaults under the data dir
}

// ScoringConfig holds the conversion-score weighting constants. These are
// product-tuning heuristics with no derivation beyond observed behavior, so
// they live in config rather than code.
type ScoringConfig struct {
	ExploredWeight int `yaml:"exploredWeight,omitempty"` // per explored agent
	ExploredCap    int `yaml:"exploredCap,omitempty"`
	LockedWeight   int `yaml:"lockedWeight,omitempty"` // per locked-agent click
	LockedCap      int `yaml:"lockedCap,omitempty"`
	InquiryWeight  int `yaml:"inquiryWeight,omitempty"` // per subscription inquiry
	InquiryCap     int `yaml:"inquiryCap,omitempty"`

	SessionBonus            int `yaml:"sessionBonus,omitempty"`            // added past sessionBonusMinutes
	SessionBonusMinutes     int `yaml:"sessionBonusMinutes,omitempty"`     // session age gate, minutes
	SessionBonusLate        int `yaml:"sessionBonusLate,omitempty"`        // added past sessionBonusLateMinutes
	SessionBonusLateMinutes int `yaml:"sessionBonusLateMinutes,omitempty"` // late session age gate, minutes
	MessageBonus            int `yaml:"messageBonus,omitempty"`            // added past messageBonusAfter
	MessageBonusAfter       int `yaml:"messageBonusAfter,omitempty"`       // message count gate
	MessageBonusLate        int `yaml:"messageBonusLate,omitempty"`        // added past messageBonusLateAfter
	MessageBonusLateAfter   int `yaml:"messageBonusLateAfter,omitempty"`   // late message count gate
}

// TrialConfig is the source of truth for trial quotas. The entitlement
// collaborator reads these rather than hard-coding limits.
type TrialConfig struct {
	LengthDays  int      `yaml:"lengthDays,omitempty"`
	DailyScans  int      `yaml:"dailyScans,omitempty"`
	DailyAgents int      `yaml:"dailyAgents,omitempty"`
	AlwaysAllow []string `yaml:"alwaysAllow,omitempty"` // agent IDs exempt from the gate
}

// SyncConfig controls the background remote context sync.
type SyncConfig struct {
	RemoteURL       string `yaml:"remoteUrl,omitempty"` // empty disables remote sync
	Token           string `yaml:"token,omitempty"`
	IntervalSeconds int    `yaml:"intervalSeconds,omitempty"`
	BatchSize       int    `yaml:"batchSize,omitempty"`
}

// FeedConfig controls the live activity feed.
type FeedConfig struct {
	Capacity         int             `yaml:"capacity,omitempty"` // bounded event list size
	HeartbeatSeconds int             `yaml:"heartbeatSeconds,omitempty"`
	Reconnect        ReconnectConfig `yaml:"reconnect,omitempty"`
}

// ReconnectConfig tunes the feed client's backoff behavior.
type ReconnectConfig struct {
	BaseDelayMs int `yaml:"baseDelayMs,omitempty"`
	MaxDelayMs  int `yaml:"maxDelayMs,omitempty"`
	MaxAttempts int `yaml:"maxAttempts,omitempty"`
}

// ScanConfig bounds the external scan collaborator.
type ScanConfig struct {
	TimeoutSeconds int   `yaml:"timeoutSeconds,omitempty"`
	MaxBodyBytes   int64 `yaml:"maxBodyBytes,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File  string `yaml:"file,omitempty"`
}
