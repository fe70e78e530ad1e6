// internal/history/schema.go
package history

// Schema creates the session tables. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	id          TEXT PRIMARY KEY,
	mode        TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chat_messages (
	seq         BIGSERIAL PRIMARY KEY,
	id          TEXT NOT NULL UNIQUE,
	session_id  TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
	role        TEXT NOT NULL,
	content     TEXT NOT NULL,
	sources     JSONB,
	reasoning   JSONB,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS chat_messages_session_seq ON chat_messages (session_id, seq DESC);

CREATE TABLE IF NOT EXISTS search_history (
	id               TEXT PRIMARY KEY,
	session_id       TEXT,
	query            TEXT NOT NULL,
	mode             TEXT NOT NULL,
	answer           TEXT NOT NULL,
	sources          JSONB,
	reasoning_steps  JSONB,
	response_time    DOUBLE PRECISION NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS search_history_created_at ON search_history (created_at DESC);
`
