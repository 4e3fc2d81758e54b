package storage

import (
	"context"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS papers (
  arxiv_id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  authors TEXT[] NOT NULL DEFAULT '{}',
  abstract TEXT,
  published_date TIMESTAMPTZ,
  pdf_url TEXT,
  entry_id TEXT,
  source TEXT NOT NULL DEFAULT 'arxiv',
  local_pdf_path TEXT,
  vector_collection TEXT UNIQUE,
  stage TEXT NOT NULL DEFAULT 'discovered'
    CHECK (stage IN ('discovered','downloaded','extracted','cleaned','indexed','failed')),
  failed_stage TEXT,
  status_notes TEXT NOT NULL DEFAULT '',
  downloaded_at TIMESTAMPTZ,
  extracted_at TIMESTAMPTZ,
  cleaned_at TIMESTAMPTZ,
  indexed_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS chat_sessions (
  session_id UUID PRIMARY KEY,
  owner_id TEXT NOT NULL,
  session_name TEXT NOT NULL DEFAULT '',
  paper_ids TEXT[] NOT NULL DEFAULT '{}',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS chat_session_papers (
  session_id UUID NOT NULL REFERENCES chat_sessions(session_id) ON DELETE CASCADE,
  arxiv_id TEXT NOT NULL REFERENCES papers(arxiv_id) ON DELETE CASCADE,
  PRIMARY KEY (session_id, arxiv_id)
);

CREATE TABLE IF NOT EXISTS chat_messages (
  id BIGSERIAL PRIMARY KEY,
  session_id UUID NOT NULL REFERENCES chat_sessions(session_id) ON DELETE CASCADE,
  role TEXT NOT NULL CHECK (role IN ('user','assistant')),
  content TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_papers_stage ON papers(stage);
CREATE INDEX IF NOT EXISTS idx_chat_sessions_owner ON chat_sessions(owner_id, updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, id);
`

// EnsureSchema creates all tables on startup so a fresh database is
// usable without a separate migration step.
func EnsureSchema(ctx context.Context, db *DB) error {
	if _, err := db.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
