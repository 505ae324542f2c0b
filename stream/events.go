// Package stream implements the client side of the Wisdar push channel: the
// SSE transport, the event envelope decoder, and the reconciler that applies
// stream events to the conversation store in order even when they arrive out
// of order.
package stream

import (
	"encoding/json"

	"github.com/pkg/errors"

	"wisdar/model"
)

// EventType names one kind of push notification.
type EventType string

const (
	EventPing EventType = "ping"

	EventStreamStart EventType = "stream_start"
	EventStreamChunk EventType = "stream_chunk"
	EventStreamEnd   EventType = "stream_end"

	EventCreditsUpdate EventType = "credits_update"

	EventTTSStart EventType = "instructed_tts_start"
	EventTTSChunk EventType = "instructed_tts_chunk"
	EventTTSEnd   EventType = "instructed_tts_end"

	EventTranscriptionStarted  EventType = "transcription_started"
	EventTranscriptionComplete EventType = "transcription_complete"

	EventAudioExtractionStarted EventType = "audio_extraction_started"

	EventVideoProgressUpdate EventType = "video_progress_update"
	EventVideoComplete       EventType = "video_complete"
	EventTTSComplete         EventType = "tts_complete"
	EventImageComplete       EventType = "image_complete"

	EventTaskFailed        EventType = "task_failed"
	EventNewMessageForEdit EventType = "new_message_for_edit"
)

// Event is the closed union of push notifications. Each concrete type below
// implements it; the dispatcher switches over them exhaustively.
type Event interface {
	Type() EventType
}

type Ping struct{}

func (Ping) Type() EventType { return EventPing }

// StreamStart carries the server-assigned assistant message, whose content is
// the first chunk.
type StreamStart struct {
	Message model.Message `json:"message"`
}

func (StreamStart) Type() EventType { return EventStreamStart }

type StreamChunk struct {
	MessageID model.ID `json:"message_id"`
	Content   string   `json:"content"`
}

func (StreamChunk) Type() EventType { return EventStreamChunk }

type StreamEnd struct {
	MessageID model.ID `json:"message_id"`
}

func (StreamEnd) Type() EventType { return EventStreamEnd }

// CreditsUpdate carries the new absolute balance.
type CreditsUpdate struct {
	Credits float64 `json:"credits"`
}

func (CreditsUpdate) Type() EventType { return EventCreditsUpdate }

type TTSStart struct {
	MessageID model.ID `json:"message_id"`
}

func (TTSStart) Type() EventType { return EventTTSStart }

// TTSChunk carries a base64-encoded slice of synthesized audio.
type TTSChunk struct {
	MessageID model.ID `json:"message_id"`
	Audio     string   `json:"audio"`
}

func (TTSChunk) Type() EventType { return EventTTSChunk }

type TTSEnd struct {
	MessageID model.ID `json:"message_id"`
}

func (TTSEnd) Type() EventType { return EventTTSEnd }

type TranscriptionStarted struct {
	MessageID model.ID `json:"message_id"`
}

func (TranscriptionStarted) Type() EventType { return EventTranscriptionStarted }

// TranscriptionComplete finalizes the user message's content with the
// transcript; the paired assistant placeholder moves on to thinking.
type TranscriptionComplete struct {
	MessageID model.ID `json:"message_id"`
	Content   string   `json:"content"`
}

func (TranscriptionComplete) Type() EventType { return EventTranscriptionComplete }

type AudioExtractionStarted struct {
	MessageID model.ID `json:"message_id"`
}

func (AudioExtractionStarted) Type() EventType { return EventAudioExtractionStarted }

type VideoProgressUpdate struct {
	MessageID   model.ID       `json:"message_id"`
	JobStatus   string         `json:"job_status"`
	JobMetadata map[string]any `json:"job_metadata"`
}

func (VideoProgressUpdate) Type() EventType { return EventVideoProgressUpdate }

// MediaComplete is the shared payload of video_complete, tts_complete and
// image_complete.
type MediaComplete struct {
	MessageID      model.ID `json:"message_id"`
	ConversationID model.ID `json:"conversation_id"`
	Content        string   `json:"content"`
	MediaURL       string   `json:"media_url"`
	FileType       string   `json:"file_type"`

	kind EventType
}

func (m MediaComplete) Type() EventType { return m.kind }

type TaskFailed struct {
	MessageID model.ID `json:"message_id"`
	Message   string   `json:"message"`
}

func (TaskFailed) Type() EventType { return EventTaskFailed }

type NewMessageForEdit struct {
	ConversationID model.ID      `json:"conversation_id"`
	Message        model.Message `json:"message"`
}

func (NewMessageForEdit) Type() EventType { return EventNewMessageForEdit }

// ErrUnknownEvent marks event types this client does not understand. Unknown
// events are logged and dropped, never fatal.
var ErrUnknownEvent = errors.New("unknown event type")

type envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DecodeEvent turns one SSE frame into an Event. eventName is the frame's
// `event:` field; data is its `data:` payload. The payload is either the
// event fields directly, or an envelope whose `data` field is a second
// JSON-encoded document carrying its own `type` (the backend publishes both
// shapes). The innermost type wins.
func DecodeEvent(eventName string, data []byte) (Event, error) {
	typ := EventType(eventName)
	payload := data

	var env envelope
	if err := json.Unmarshal(data, &env); err == nil {
		if env.Type != "" {
			typ = env.Type
		}
		if len(env.Data) > 0 {
			var inner string
			if err := json.Unmarshal(env.Data, &inner); err == nil {
				payload = []byte(inner)
			} else {
				payload = env.Data
			}
			var innerEnv envelope
			if err := json.Unmarshal(payload, &innerEnv); err == nil && innerEnv.Type != "" {
				typ = innerEnv.Type
			}
		}
	}

	unmarshal := func(v Event) (Event, error) {
		if err := json.Unmarshal(payload, v); err != nil {
			return nil, errors.Wrapf(err, "decoding %s payload", typ)
		}
		return v, nil
	}

	switch typ {
	case EventPing:
		return Ping{}, nil
	case EventStreamStart:
		return unmarshal(&StreamStart{})
	case EventStreamChunk:
		return unmarshal(&StreamChunk{})
	case EventStreamEnd:
		return unmarshal(&StreamEnd{})
	case EventCreditsUpdate:
		return unmarshal(&CreditsUpdate{})
	case EventTTSStart:
		return unmarshal(&TTSStart{})
	case EventTTSChunk:
		return unmarshal(&TTSChunk{})
	case EventTTSEnd:
		return unmarshal(&TTSEnd{})
	case EventTranscriptionStarted:
		return unmarshal(&TranscriptionStarted{})
	case EventTranscriptionComplete:
		return unmarshal(&TranscriptionComplete{})
	case EventAudioExtractionStarted:
		return unmarshal(&AudioExtractionStarted{})
	case EventVideoProgressUpdate:
		return unmarshal(&VideoProgressUpdate{})
	case EventVideoComplete, EventTTSComplete, EventImageComplete:
		ev := &MediaComplete{kind: typ}
		return unmarshal(ev)
	case EventTaskFailed:
		return unmarshal(&TaskFailed{})
	case EventNewMessageForEdit:
		return unmarshal(&NewMessageForEdit{})
	default:
		return nil, errors.Wrapf(ErrUnknownEvent, "%q", typ)
	}
}
