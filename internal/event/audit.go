package event

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// AuditHook appends posted messages and created channels to a SQLite file.
// The trail is write-only from the relay's point of view: nothing reads it
// back at runtime, the in-memory store stays authoritative, and deleting the
// file never changes relay behavior. It exists so an operator can reconstruct
// who talked when after both agent sessions are gone.
//
// Always non-blocking; a failed insert is a logged warning, never a failed post.
type AuditHook struct {
	baseHook
	db *sql.DB
}

// NewAuditHook opens (or creates) the audit database at dbPath. The directory
// is created if it doesn't exist. WAL mode is enabled so concurrent inserts
// from hook goroutines don't contend.
func NewAuditHook(name, dbPath string) (*AuditHook, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	h := &AuditHook{
		baseHook: baseHook{
			name:     name,
			events:   []EventType{MessagePosted, ChannelCreated},
			blocking: false,
		},
		db: db,
	}
	if err := h.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate audit database: %w", err)
	}

	return h, nil
}

func (h *AuditHook) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posted_messages (
		id INTEGER PRIMARY KEY,
		target TEXT NOT NULL,
		sender TEXT NOT NULL,
		text_len INTEGER NOT NULL,
		posted_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posted_messages_target ON posted_messages(target);

	CREATE TABLE IF NOT EXISTS channels (
		name TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL
	);
	`
	_, err := h.db.Exec(schema)
	return err
}

func (h *AuditHook) Handle(ev Event) error {
	switch ev.Type {
	case MessagePosted:
		return h.recordMessage(ev)
	case ChannelCreated:
		return h.recordChannel(ev)
	}
	return nil
}

func (h *AuditHook) recordMessage(ev Event) error {
	id, ok := ev.Data["id"].(int64)
	if !ok {
		return fmt.Errorf("audit: message event missing id")
	}
	target, _ := ev.Data["target"].(string)
	sender, _ := ev.Data["sender"].(string)
	textLen, _ := ev.Data["text_len"].(int)

	_, err := h.db.Exec(
		`INSERT OR REPLACE INTO posted_messages (id, target, sender, text_len, posted_at) VALUES (?, ?, ?, ?, ?)`,
		id, target, sender, textLen, ev.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("audit message %d: %w", id, err)
	}
	return nil
}

func (h *AuditHook) recordChannel(ev Event) error {
	target, ok := ev.Data["target"].(string)
	if !ok {
		return fmt.Errorf("audit: channel event missing target")
	}

	_, err := h.db.Exec(
		`INSERT OR IGNORE INTO channels (name, created_at) VALUES (?, ?)`,
		target, ev.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("audit channel %s: %w", target, err)
	}
	return nil
}

// MessageCount reports the number of audited messages, for the stats surface.
func (h *AuditHook) MessageCount() (int64, error) {
	var n int64
	err := h.db.QueryRow(`SELECT COUNT(*) FROM posted_messages`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count audited messages: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (h *AuditHook) Close() error {
	return h.db.Close()
}
