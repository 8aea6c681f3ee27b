package sqlite

// schemaSQL is the v1 schema. Timestamps are Unix seconds; soft delete is a
// nullable deleted_at on every user-facing table. JSON columns hold serialized
// maps and bundles (extras, metadata, result_key).
const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	last_login INTEGER
);

CREATE TABLE IF NOT EXISTS languages (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	code TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	deleted_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_languages_user ON languages(user_id, deleted_at);

CREATE TABLE IF NOT EXISTS voices (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	path TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	deleted_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_voices_user ON voices(user_id, deleted_at);

CREATE TABLE IF NOT EXISTS topics (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	image_prefix TEXT NOT NULL DEFAULT '',
	cover_prompt TEXT NOT NULL DEFAULT '',
	style_name TEXT NOT NULL DEFAULT '',
	style_weight REAL NOT NULL DEFAULT 0,
	extras TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	deleted_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_topics_user ON topics(user_id, deleted_at);

CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	logo_path TEXT NOT NULL DEFAULT '',
	digital_human TEXT,
	subtitle_style TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	deleted_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_accounts_user ON accounts(user_id, deleted_at);

CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	language_id TEXT NOT NULL,
	voice_id TEXT NOT NULL DEFAULT '',
	topic_id TEXT NOT NULL DEFAULT '',
	account_id TEXT NOT NULL DEFAULT '',
	speech_speed REAL NOT NULL DEFAULT 1.0,
	is_horizontal INTEGER NOT NULL DEFAULT 0,
	extras TEXT NOT NULL DEFAULT '{}',
	run_order INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	deleted_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_jobs_user ON jobs(user_id, deleted_at, id);
CREATE INDEX IF NOT EXISTS idx_jobs_run_order ON jobs(deleted_at, run_order, id);
CREATE INDEX IF NOT EXISTS idx_jobs_language ON jobs(language_id, deleted_at, id);

CREATE TABLE IF NOT EXISTS job_executions (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL,
	status TEXT NOT NULL,
	status_detail TEXT NOT NULL DEFAULT '',
	worker_hostname TEXT NOT NULL DEFAULT '',
	started_at INTEGER,
	finished_at INTEGER,
	retry_count INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	result_key TEXT NOT NULL DEFAULT '',
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	deleted_at INTEGER
);

CREATE TABLE IF NOT EXISTS job_splits (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL,
	idx INTEGER NOT NULL,
	start_ms INTEGER NOT NULL,
	end_ms INTEGER NOT NULL,
	text TEXT NOT NULL DEFAULT '',
	prompt TEXT NOT NULL DEFAULT '',
	image_candidates TEXT NOT NULL DEFAULT '[]',
	selected_image_id TEXT NOT NULL DEFAULT '',
	video_path TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	deleted_at INTEGER,
	UNIQUE(job_id, idx)
);
CREATE INDEX IF NOT EXISTS idx_job_splits_job ON job_splits(job_id, idx);
`

// dispatchIndexSQL adds the indexes the janitor and dispatcher lean on.
const dispatchIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_executions_job ON job_executions(job_id, status);
CREATE INDEX IF NOT EXISTS idx_executions_status ON job_executions(status, created_at);
CREATE INDEX IF NOT EXISTS idx_executions_worker ON job_executions(worker_hostname, status);
`
