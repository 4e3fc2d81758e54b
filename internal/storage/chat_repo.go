package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"paperflow/internal/models"
	"paperflow/internal/util"
)

type ChatRepo struct {
	db *DB
}

func NewChatRepo(db *DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// CreateSession persists a new session and its paper links in one
// transaction.
func (r *ChatRepo) CreateSession(ctx context.Context, ownerID, name string, paperIDs []string) (models.ChatSession, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return models.ChatSession{}, fmt.Errorf("begin create session: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	s := models.ChatSession{
		SessionID: uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		PaperIDs:  paperIDs,
	}
	err = tx.QueryRow(ctx, `
INSERT INTO chat_sessions (session_id, owner_id, session_name, paper_ids)
VALUES ($1, $2, $3, $4)
RETURNING created_at, updated_at`,
		s.SessionID, s.OwnerID, s.Name, s.PaperIDs,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return models.ChatSession{}, fmt.Errorf("insert session: %w", err)
	}
	for _, id := range paperIDs {
		if _, err := tx.Exec(ctx, `
INSERT INTO chat_session_papers (session_id, arxiv_id) VALUES ($1, $2)
ON CONFLICT DO NOTHING`, s.SessionID, id); err != nil {
			return models.ChatSession{}, fmt.Errorf("link session paper: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return models.ChatSession{}, fmt.Errorf("commit create session: %w", err)
	}
	return s, nil
}

func (r *ChatRepo) GetSession(ctx context.Context, sessionID string) (models.ChatSession, error) {
	var s models.ChatSession
	err := r.db.Pool.QueryRow(ctx, `
SELECT session_id::text, owner_id, session_name, paper_ids, created_at, updated_at
FROM chat_sessions WHERE session_id=$1`, sessionID).
		Scan(&s.SessionID, &s.OwnerID, &s.Name, &s.PaperIDs, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ChatSession{}, fmt.Errorf("%w: chat session %s", util.ErrNotFound, sessionID)
	}
	if err != nil {
		return models.ChatSession{}, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (r *ChatRepo) ListSessions(ctx context.Context, ownerID string) ([]models.ChatSession, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT session_id::text, owner_id, session_name, paper_ids, created_at, updated_at
FROM chat_sessions WHERE owner_id=$1
ORDER BY updated_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]models.ChatSession, 0)
	for rows.Next() {
		var s models.ChatSession
		if err := rows.Scan(&s.SessionID, &s.OwnerID, &s.Name, &s.PaperIDs, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// ListMessages returns the session's full transcript, oldest first.
func (r *ChatRepo) ListMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT id, session_id::text, role, content, created_at
FROM chat_messages WHERE session_id=$1
ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := make([]models.ChatMessage, 0)
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.MessageID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

// AppendTurn writes the user message and the assistant reply together
// and bumps the session's updated_at, all in one transaction so a
// transcript never holds half a turn.
func (r *ChatRepo) AppendTurn(ctx context.Context, sessionID, userContent, assistantContent string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append turn: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `
INSERT INTO chat_messages (session_id, role, content) VALUES ($1, 'user', $2)`, sessionID, userContent); err != nil {
		return fmt.Errorf("insert user message: %w", err)
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO chat_messages (session_id, role, content) VALUES ($1, 'assistant', $2)`, sessionID, assistantContent); err != nil {
		return fmt.Errorf("insert assistant message: %w", err)
	}
	if _, err := tx.Exec(ctx, `
UPDATE chat_sessions SET updated_at=NOW() WHERE session_id=$1`, sessionID); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append turn: %w", err)
	}
	return nil
}
