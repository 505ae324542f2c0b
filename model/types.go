// Package model defines the domain types shared by the store, the stream
// dispatcher, the API client and the UI.
//
// The Wisdar backend serializes ids as JSON numbers for persisted rows, while
// the client synthesizes string ids for optimistic placeholders ("temp-user-*",
// "assistant-temp-user-*") and sentinel conversations ("new", "agent-*").
// The ID type accepts both wire forms and normalizes them to strings so that
// id comparison is uniform across the codebase.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ID is a message or conversation identifier. The backend sends integers,
// the client generates strings; both decode into the same type.
type ID string

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON re-emits numeric ids as numbers so round trips match the wire.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return json.Marshal(n)
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

// NewConversationID is the sentinel id for a conversation that has not been
// confirmed by the server yet.
const NewConversationID ID = "new"

// TempUserMessageID generates a client-side id for an optimistic user message.
func TempUserMessageID() ID {
	return ID("temp-user-" + uuid.New().String())
}

// AssistantPlaceholderID derives the placeholder id for the assistant reply
// paired with the given user message.
func AssistantPlaceholderID(userMessageID ID) ID {
	return ID("assistant-" + string(userMessageID))
}

// AgentConversationID derives the synthetic conversation id used for agent
// executions that do not live in a persisted conversation.
func AgentConversationID(agentID int) ID {
	return ID(fmt.Sprintf("agent-%d", agentID))
}

// MessageRole identifies the author of a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Attachment describes a file carried by a message. FileURL points at the
// backend; LocalPath is filled in once the artifact has been downloaded into
// the local media cache and is never serialized.
type Attachment struct {
	FileName      string `json:"fileName"`
	FileType      string `json:"fileType"`
	FileURL       string `json:"fileURL"`
	Transcription string `json:"transcription,omitempty"`

	LocalPath string `json:"-"`
}

// Message is one chat message. Content is append-only while the status is
// streaming; JobStatus/JobMetadata carry progress for long-running media
// generation tasks and are cleared when the task settles.
type Message struct {
	ID             ID             `json:"id"`
	ConversationID ID             `json:"conversation_id,omitempty"`
	Role           MessageRole    `json:"role"`
	Content        string         `json:"content"`
	Timestamp      string         `json:"timestamp,omitempty"`
	Status         MessageStatus  `json:"status,omitempty"`
	Attachment     *Attachment    `json:"attachment,omitempty"`
	UploadProgress int            `json:"upload_progress,omitempty"`
	JobStatus      string         `json:"job_status,omitempty"`
	JobMetadata    map[string]any `json:"job_metadata,omitempty"`
}

// Conversation is an ordered message sequence plus selection state. At most
// one conversation is active at a time; that invariant is maintained by the
// store, not here.
type Conversation struct {
	ID        ID        `json:"id"`
	Title     string    `json:"title"`
	CreatedAt string    `json:"created_at"`
	AIModelID string    `json:"ai_model_id"`
	Messages  []Message `json:"messages"`
	Active    bool      `json:"active,omitempty"`
	Pinned    bool      `json:"pinned,omitempty"`

	// ImageContextURL carries the last generated image across turns so
	// follow-up prompts can reference it.
	ImageContextURL string `json:"image_context_url,omitempty"`
}

// CreatedTime parses CreatedAt, accepting both RFC 3339 and the backend's
// zone-less isoformat. The zero time is returned for unparseable values so
// sorting stays total.
func (c Conversation) CreatedTime() time.Time {
	return ParseTimestamp(c.CreatedAt)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses a backend timestamp. Returns the zero time when the
// value matches no known layout.
func ParseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
