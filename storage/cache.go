package storage

import (
	"database/sql"
	"encoding/json"
	"path/filepath"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"wisdar/model"
)

// ConversationCache is a local sqlite mirror of the server's conversation
// list and message histories. It exists for fast, offline-tolerant startup:
// the UI renders from the cache immediately and reconciles when the backend
// responds. The server remains the source of truth.
type ConversationCache struct {
	db *sql.DB
}

// NewConversationCache opens (creating if needed) the cache database in
// dataDir.
func NewConversationCache(dataDir string) (*ConversationCache, error) {
	dbPath := filepath.Join(dataDir, "conversations.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening cache database")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "pinging cache database")
	}

	cache := &ConversationCache{db: db}
	if err := cache.initialize(); err != nil {
		return nil, errors.Wrap(err, "initializing cache database")
	}
	return cache, nil
}

func (c *ConversationCache) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		created_at TEXT,
		ai_model_id TEXT,
		pinned INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT,
		timestamp TEXT,
		status TEXT,
		attachment TEXT,
		position INTEGER NOT NULL,
		PRIMARY KEY (conversation_id, id)
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
	`
	_, err := c.db.Exec(schema)
	return err
}

// SaveConversations replaces the cached conversation list. Message histories
// are kept; conversations that no longer exist lose theirs.
func (c *ConversationCache) SaveConversations(conversations []model.Conversation) error {
	tx, err := c.db.Begin()
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM conversations`); err != nil {
		return errors.Wrap(err, "clearing conversations")
	}
	stmt, err := tx.Prepare(`INSERT INTO conversations (id, title, created_at, ai_model_id, pinned, position)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "preparing insert")
	}
	defer func() { _ = stmt.Close() }()

	for i, conv := range conversations {
		pinned := 0
		if conv.Pinned {
			pinned = 1
		}
		if _, err := stmt.Exec(conv.ID.String(), conv.Title, conv.CreatedAt, conv.AIModelID, pinned, i); err != nil {
			return errors.Wrapf(err, "inserting conversation %s", conv.ID)
		}
	}

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id NOT IN (SELECT id FROM conversations)`); err != nil {
		return errors.Wrap(err, "pruning orphaned messages")
	}

	return errors.Wrap(tx.Commit(), "committing conversations")
}

// SaveMessages replaces the cached history of one conversation.
func (c *ConversationCache) SaveMessages(conversationID model.ID, messages []model.Message) error {
	tx, err := c.db.Begin()
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conversationID.String()); err != nil {
		return errors.Wrap(err, "clearing messages")
	}

	stmt, err := tx.Prepare(`INSERT INTO messages (id, conversation_id, role, content, timestamp, status, attachment, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "preparing insert")
	}
	defer func() { _ = stmt.Close() }()

	for i, msg := range messages {
		var attachment []byte
		if msg.Attachment != nil {
			attachment, err = json.Marshal(msg.Attachment)
			if err != nil {
				return errors.Wrapf(err, "encoding attachment of %s", msg.ID)
			}
		}
		if _, err := stmt.Exec(msg.ID.String(), conversationID.String(), string(msg.Role),
			msg.Content, msg.Timestamp, string(msg.Status), attachment, i); err != nil {
			return errors.Wrapf(err, "inserting message %s", msg.ID)
		}
	}

	return errors.Wrap(tx.Commit(), "committing messages")
}

// LoadConversations returns the cached conversation list in saved order,
// without message histories.
func (c *ConversationCache) LoadConversations() ([]model.Conversation, error) {
	rows, err := c.db.Query(`SELECT id, title, created_at, ai_model_id, pinned
		FROM conversations ORDER BY position`)
	if err != nil {
		return nil, errors.Wrap(err, "querying conversations")
	}
	defer func() { _ = rows.Close() }()

	var conversations []model.Conversation
	for rows.Next() {
		var conv model.Conversation
		var id string
		var pinned int
		if err := rows.Scan(&id, &conv.Title, &conv.CreatedAt, &conv.AIModelID, &pinned); err != nil {
			return nil, errors.Wrap(err, "scanning conversation")
		}
		conv.ID = model.ID(id)
		conv.Pinned = pinned != 0
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// LoadMessages returns one conversation's cached history in order. All
// cached statuses are terminal, so they load as complete unless failed.
func (c *ConversationCache) LoadMessages(conversationID model.ID) ([]model.Message, error) {
	rows, err := c.db.Query(`SELECT id, role, content, timestamp, status, attachment
		FROM messages WHERE conversation_id = ? ORDER BY position`, conversationID.String())
	if err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	defer func() { _ = rows.Close() }()

	var messages []model.Message
	for rows.Next() {
		var msg model.Message
		var id, role, status string
		var attachment []byte
		if err := rows.Scan(&id, &role, &msg.Content, &msg.Timestamp, &status, &attachment); err != nil {
			return nil, errors.Wrap(err, "scanning message")
		}
		msg.ID = model.ID(id)
		msg.ConversationID = conversationID
		msg.Role = model.MessageRole(role)
		msg.Status = model.MessageStatus(status)
		if msg.Status != model.StatusFailed && msg.Status != model.StatusError {
			msg.Status = model.StatusComplete
		}
		if len(attachment) > 0 {
			msg.Attachment = &model.Attachment{}
			if err := json.Unmarshal(attachment, msg.Attachment); err != nil {
				return nil, errors.Wrapf(err, "decoding attachment of %s", id)
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Clear wipes the whole cache, used at logout.
func (c *ConversationCache) Clear() error {
	if _, err := c.db.Exec(`DELETE FROM messages`); err != nil {
		return errors.Wrap(err, "clearing messages")
	}
	_, err := c.db.Exec(`DELETE FROM conversations`)
	return errors.Wrap(err, "clearing conversations")
}

// Close closes the underlying database.
func (c *ConversationCache) Close() error {
	return c.db.Close()
}
