package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS session (
	slot     INTEGER PRIMARY KEY CHECK(slot = 1),
	id       TEXT NOT NULL,
	username TEXT NOT NULL DEFAULT '',
	email    TEXT NOT NULL DEFAULT '',
	role     TEXT NOT NULL DEFAULT 'user' CHECK(role IN ('admin', 'user')),
	saved_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS task_snapshot (
	id         TEXT PRIMARY KEY,
	position   INTEGER NOT NULL,
	status     TEXT NOT NULL CHECK(status IN ('Todo', 'In-Progress', 'Done')),
	updated_at DATETIME NOT NULL,
	data       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_task_snapshot_position ON task_snapshot(position);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
