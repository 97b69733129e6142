// Package archive persists normalized message traffic to SQLite. It is an
// optional consumer: when enabled it subscribes to a session's event bus
// and records messages, delivery-status transitions and deletions.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"whatsauto/internal/events"
	"whatsauto/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	message_id TEXT NOT NULL,
	chat_jid TEXT NOT NULL,
	author TEXT,
	receiver TEXT,
	from_me INTEGER NOT NULL DEFAULT 0,
	is_group INTEGER NOT NULL DEFAULT 0,
	is_story INTEGER NOT NULL DEFAULT 0,
	is_reaction INTEGER NOT NULL DEFAULT 0,
	text TEXT,
	media_type TEXT,
	push_name TEXT,
	status TEXT,
	deleted INTEGER NOT NULL DEFAULT 0,
	message_timestamp INTEGER,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(session_id, message_id)
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(session_id, chat_jid);
CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);
`

// Record is one archived message row.
type Record struct {
	ID         int64
	SessionID  string
	MessageID  string
	ChatJID    string
	Author     string
	Receiver   string
	FromMe     bool
	IsGroup    bool
	IsStory    bool
	IsReaction bool
	Text       string
	MediaType  models.MediaType
	PushName   string
	Status     models.MessageStatus
	Deleted    bool
	Timestamp  int64
	CreatedAt  time.Time
}

// Archive is a SQLite-backed message store.
type Archive struct {
	db *sql.DB
}

// New opens or creates the archive database at dbPath and ensures the
// schema exists.
func New(dbPath string) (*Archive, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid archive path")
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping archive database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping archive database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// SaveMessage records a normalized message. Replays of the same message
// key update the row in place.
func (a *Archive) SaveMessage(ctx context.Context, msg *models.Message) error {
	if msg == nil {
		return fmt.Errorf("nil message")
	}

	query := `
		INSERT INTO messages (
			session_id, message_id, chat_jid, author, receiver,
			from_me, is_group, is_story, is_reaction,
			text, media_type, push_name, message_timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, message_id) DO UPDATE SET
			text = excluded.text,
			media_type = excluded.media_type,
			updated_at = CURRENT_TIMESTAMP
	`

	return retryableDBOperation(ctx, func() error {
		_, err := a.db.ExecContext(ctx, query,
			msg.SessionID,
			msg.Key.ID,
			msg.Key.RemoteJID,
			msg.Author,
			msg.Receiver,
			msg.Key.FromMe,
			msg.IsGroup,
			msg.IsStory,
			msg.IsReaction,
			msg.Text,
			string(msg.MediaType),
			msg.PushName,
			msg.Timestamp,
		)
		return err
	}, "save message")
}

// UpdateStatus records a delivery-status transition for an already
// archived message. Updates for unseen messages are dropped silently.
func (a *Archive) UpdateStatus(ctx context.Context, update *models.MessageUpdate) error {
	if update == nil {
		return fmt.Errorf("nil update")
	}

	query := `
		UPDATE messages SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE session_id = ? AND message_id = ?
	`

	return retryableDBOperation(ctx, func() error {
		_, err := a.db.ExecContext(ctx, query, string(update.Status), update.SessionID, update.Key.ID)
		return err
	}, "update status")
}

// MarkDeleted flags an archived message as revoked. The text and media
// columns are kept; the archive is the one place a deleted message
// remains visible.
func (a *Archive) MarkDeleted(ctx context.Context, del *models.DeletedMessage) error {
	if del == nil {
		return fmt.Errorf("nil deletion")
	}

	query := `
		UPDATE messages SET deleted = 1, updated_at = CURRENT_TIMESTAMP
		WHERE session_id = ? AND message_id = ?
	`

	return retryableDBOperation(ctx, func() error {
		_, err := a.db.ExecContext(ctx, query, del.SessionID, del.DeletedID)
		return err
	}, "mark deleted")
}

// GetMessage fetches one archived message by session and message id.
func (a *Archive) GetMessage(ctx context.Context, sessionID, messageID string) (*Record, error) {
	query := selectColumns + ` WHERE session_id = ? AND message_id = ?`

	var rec Record
	err := a.scanRecord(a.db.QueryRowContext(ctx, query, sessionID, messageID), &rec)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &rec, nil
}

// RecentMessages returns up to limit messages for a session, newest first.
func (a *Archive) RecentMessages(ctx context.Context, sessionID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	query := selectColumns + ` WHERE session_id = ? ORDER BY id DESC LIMIT ?`

	rows, err := a.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := a.scanRecord(rows, &rec); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CleanupOlderThan removes messages archived more than retentionDays ago
// and returns how many rows were deleted.
func (a *Archive) CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention days must be positive")
	}

	query := `DELETE FROM messages WHERE created_at < datetime('now', ?)`
	res, err := a.db.ExecContext(ctx, query, fmt.Sprintf("-%d days", retentionDays))
	if err != nil {
		return 0, fmt.Errorf("failed to clean up archive: %w", err)
	}
	return res.RowsAffected()
}

const selectColumns = `
	SELECT id, session_id, message_id, chat_jid, author, receiver,
		   from_me, is_group, is_story, is_reaction,
		   text, media_type, push_name, status, deleted,
		   message_timestamp, created_at
	FROM messages`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (a *Archive) scanRecord(row rowScanner, rec *Record) error {
	var (
		mediaType sql.NullString
		status    sql.NullString
		text      sql.NullString
		author    sql.NullString
		receiver  sql.NullString
		pushName  sql.NullString
		ts        sql.NullInt64
	)
	err := row.Scan(
		&rec.ID, &rec.SessionID, &rec.MessageID, &rec.ChatJID, &author, &receiver,
		&rec.FromMe, &rec.IsGroup, &rec.IsStory, &rec.IsReaction,
		&text, &mediaType, &pushName, &status, &rec.Deleted,
		&ts, &rec.CreatedAt,
	)
	if err != nil {
		return err
	}
	rec.Author = author.String
	rec.Receiver = receiver.String
	rec.Text = text.String
	rec.MediaType = models.MediaType(mediaType.String)
	rec.PushName = pushName.String
	rec.Status = models.MessageStatus(status.String)
	rec.Timestamp = ts.Int64
	return nil
}

// Attach subscribes the archive to a session bus. Failures are logged and
// never propagate back into message dispatch.
func (a *Archive) Attach(bus *events.Bus, logger *logrus.Entry) error {
	if err := bus.Subscribe(events.Message, func(msg *models.Message) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.SaveMessage(ctx, msg); err != nil {
			logger.WithError(err).Warn("Failed to archive message")
		}
	}); err != nil {
		return err
	}

	if err := bus.Subscribe(events.MessageUpdated, func(update *models.MessageUpdate) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.UpdateStatus(ctx, update); err != nil {
			logger.WithError(err).Warn("Failed to archive status update")
		}
	}); err != nil {
		return err
	}

	return bus.Subscribe(events.MessageDeleted, func(del *models.DeletedMessage) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.MarkDeleted(ctx, del); err != nil {
			logger.WithError(err).Warn("Failed to archive deletion")
		}
	})
}
