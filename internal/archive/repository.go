// Package archive persists inbound MQTT messages to SQLite and serves them
// back for the message history API.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Page size limits for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// timeLayout sorts lexically in the same order as time.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Message is one archived inbound message.
// Payload is raw bytes and encodes as base64 in JSON.
type Message struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	Payload    []byte    `json:"payload"`
	Size       int       `json:"size"`
	ReceivedAt time.Time `json:"received_at"`
}

// Filter controls which messages List returns.
type Filter struct {
	Topic       string    // optional: exact topic
	TopicPrefix string    // optional: topics starting with this prefix
	Since       time.Time // optional: received at or after
	Limit       int       // default 50, max 200
	Offset      int       // pagination offset
}

// ListResult contains a page of archived messages.
type ListResult struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

// Repository defines the archive operations.
type Repository interface {
	Create(ctx context.Context, msg *Message) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SQLiteRepository stores messages in the messages table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new message repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts msg. ID, Size and ReceivedAt are filled in if empty.
func (r *SQLiteRepository) Create(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = "msg-" + uuid.NewString()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}
	if msg.Payload == nil {
		msg.Payload = []byte{}
	}
	msg.Size = len(msg.Payload)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, topic, payload, size, received_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.Topic, msg.Payload, msg.Size,
		msg.ReceivedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// List returns messages matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.Topic != "" {
		conditions = append(conditions, "topic = ?")
		args = append(args, filter.Topic)
	}
	if filter.TopicPrefix != "" {
		conditions = append(conditions, "substr(topic, 1, ?) = ?")
		args = append(args, utf8.RuneCountInString(filter.TopicPrefix), filter.TopicPrefix)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "received_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM messages " + where //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting messages: %w", err)
	}

	query := "SELECT id, topic, payload, size, received_at FROM messages " + where + //nolint:gosec // WHERE built from parameterised conditions
		" ORDER BY received_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var msg Message
		var receivedAt string
		if err := rows.Scan(&msg.ID, &msg.Topic, &msg.Payload, &msg.Size, &receivedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		t, err := time.Parse(timeLayout, receivedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing message timestamp %q: %w", receivedAt, err)
		}
		msg.ReceivedAt = t
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return &ListResult{
		Messages: messages,
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}, nil
}

// DeleteBefore removes messages received before cutoff and reports how many.
func (r *SQLiteRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM messages WHERE received_at < ?",
		cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting messages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted messages: %w", err)
	}
	return n, nil
}
