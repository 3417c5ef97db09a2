// Package history archives chat transcripts in SQLite.
// The archive is write-mostly: chats stay authoritative in memory and archive failures
// never reach the user.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/gitmaster-go/internal/logger"
	"github.com/comigor/gitmaster-go/internal/session"
)

const schema = `CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    reply_to TEXT,
    created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_session_idx ON messages (session_id, created_at);`

// Archive stores messages in a SQLite database.
type Archive struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(10000)")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	logger.L.Info("sqlite history DB initialized", "path", path)
	return &Archive{db: db}, nil
}

// Record implements session.Recorder.
func (a *Archive) Record(ctx context.Context, sessionID string, msg session.Message) error {
	var replyTo sql.NullString
	if msg.ReplyTo != "" {
		replyTo = sql.NullString{String: msg.ReplyTo, Valid: true}
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, reply_to, created_at) VALUES (?,?,?,?,?,?);`,
		msg.ID, sessionID, string(msg.Role), msg.Content, replyTo, msg.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("store message %s: %w", msg.ID, err)
	}
	return nil
}

// List returns all messages of a session in chronological order.
func (a *Archive) List(ctx context.Context, sessionID string) ([]session.Message, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, role, content, reply_to, created_at FROM messages WHERE session_id = ? ORDER BY created_at ASC, rowid ASC;`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []session.Message
	for rows.Next() {
		var (
			m       session.Message
			role    string
			replyTo sql.NullString
			created time.Time
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &replyTo, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = session.Role(role)
		m.ReplyTo = replyTo.String
		m.Timestamp = created
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}
