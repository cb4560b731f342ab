package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create contexts and onboarding",
		SQL: `
			CREATE TABLE contexts (
				identity    TEXT PRIMARY KEY,
				doc         TEXT NOT NULL,
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE TABLE onboarding (
				identity    TEXT PRIMARY KEY,
				doc         TEXT NOT NULL,
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`,
	},
	{
		Version: 2,
		Name:    "create trials and trial_usage",
		SQL: `
			CREATE TABLE trials (
				identity    TEXT PRIMARY KEY,
				started_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE TABLE trial_usage (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				identity    TEXT NOT NULL,
				usage_type  TEXT NOT NULL,
				agent_id    TEXT NOT NULL DEFAULT '',
				feature     TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_usage_identity ON trial_usage (identity, usage_type, created_at);
		`,
	},
	{
		Version: 3,
		Name:    "create activity_events",
		SQL: `
			CREATE TABLE activity_events (
				id            TEXT PRIMARY KEY,
				agent_id      TEXT NOT NULL,
				agent_name    TEXT NOT NULL DEFAULT '',
				status        TEXT NOT NULL,
				started_at    TEXT NOT NULL,
				completed_at  TEXT,
				source        TEXT NOT NULL DEFAULT '',
				error_message TEXT NOT NULL DEFAULT '',
				result        TEXT NOT NULL DEFAULT '',
				user_id       TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX idx_activity_started ON activity_events (started_at DESC);
			CREATE INDEX idx_activity_agent ON activity_events (agent_id);
		`,
	},
}
