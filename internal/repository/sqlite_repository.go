package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"docdash/internal/model"
)

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const summaryColumns = `
	c.id, c.title, c.updated_at,
	(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id),
	COALESCE((SELECT m.content FROM messages m WHERE m.conversation_id = c.id
		ORDER BY m.created_at DESC, m.rowid DESC LIMIT 1), '')`

type sqliteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) Repository {
	return &sqliteRepository{db: db}
}

func (r *sqliteRepository) CreateConversation(ctx context.Context, id, title string, now time.Time) error {
	query := "INSERT INTO conversations (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)"
	ts := formatTime(now)
	if _, err := r.db.ExecContext(ctx, query, id, title, ts, ts); err != nil {
		return fmt.Errorf("could not insert conversation: %w", err)
	}
	return nil
}

func (r *sqliteRepository) GetConversation(ctx context.Context, id string) (*model.ConversationSummary, error) {
	query := "SELECT " + summaryColumns + " FROM conversations c WHERE c.id = ?"
	summary, err := scanSummary(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (r *sqliteRepository) ListConversations(ctx context.Context) ([]model.ConversationSummary, error) {
	query := "SELECT " + summaryColumns + " FROM conversations c ORDER BY c.updated_at DESC, c.rowid DESC"
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := []model.ConversationSummary{}
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *summary)
	}
	return conversations, rows.Err()
}

func (r *sqliteRepository) UpdateConversationTitle(ctx context.Context, id, title string) error {
	query := "UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?"
	res, err := r.db.ExecContext(ctx, query, title, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// DeleteConversation removes the conversation; its messages go with it via
// ON DELETE CASCADE.
func (r *sqliteRepository) DeleteConversation(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r *sqliteRepository) AddMessage(ctx context.Context, conversationID string, message *model.ChatMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var tokens sql.NullInt64
	if message.TokenCount != nil {
		tokens = sql.NullInt64{Int64: int64(*message.TokenCount), Valid: true}
	}
	createdAt := formatTime(message.CreatedAt.Time)

	insertQuery := `
		INSERT INTO messages (id, conversation_id, role, content, token_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, insertQuery,
		message.ID, conversationID, string(message.Role), message.Content, tokens, createdAt,
	); err != nil {
		return fmt.Errorf("could not insert message: %w", err)
	}

	res, err := tx.ExecContext(ctx, "UPDATE conversations SET updated_at = ? WHERE id = ?", createdAt, conversationID)
	if err != nil {
		return fmt.Errorf("could not update conversation timestamp: %w", err)
	}
	if err := expectAffected(res); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *sqliteRepository) GetMessages(ctx context.Context, conversationID string) ([]model.ChatMessage, error) {
	query := `
		SELECT id, role, content, token_count, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, rowid ASC
	`
	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []model.ChatMessage{}
	for rows.Next() {
		var (
			msg       model.ChatMessage
			role      string
			tokens    sql.NullInt64
			createdAt string
		)
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &tokens, &createdAt); err != nil {
			return nil, err
		}
		msg.Role = model.Role(role)
		if tokens.Valid {
			n := int(tokens.Int64)
			msg.TokenCount = &n
		}
		if msg.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (*model.ConversationSummary, error) {
	var (
		summary   model.ConversationSummary
		updatedAt string
		last      string
	)
	if err := row.Scan(&summary.ID, &summary.Title, &updatedAt, &summary.MessageCount, &last); err != nil {
		return nil, err
	}
	ts, err := parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	summary.UpdatedAt = ts
	summary.LastMessagePreview = model.Preview(last, model.PreviewLength)
	return &summary, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (model.Timestamp, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return model.Timestamp{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return model.NewTimestamp(t), nil
}
