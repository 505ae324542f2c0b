package stream

import (
	"path"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"wisdar/model"
	"wisdar/store"
)

// MediaSink persists assembled TTS audio locally and returns the file path.
type MediaSink interface {
	SaveAudio(messageID model.ID, data []byte) (string, error)
}

// Notifier surfaces a user-visible notification. May be nil.
type Notifier func(title, message string)

// Dispatcher decodes inbound frames and routes each event to exactly one
// handler. Malformed payloads are logged and dropped; nothing here can crash
// the connection. All handling is serialized under one mutex because frames
// arrive on the transport goroutine while teardown comes from the UI
// goroutine.
type Dispatcher struct {
	mu         sync.Mutex
	store      *store.Store
	reconciler *Reconciler
	audio      *audioBuffers
	media      MediaSink
	notify     Notifier
	log        zerolog.Logger
}

// NewDispatcher wires a dispatcher to the conversation store. media and
// notify may be nil.
func NewDispatcher(st *store.Store, media MediaSink, notify Notifier, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:      st,
		reconciler: NewReconciler(st, log),
		audio:      newAudioBuffers(),
		media:      media,
		notify:     notify,
		log:        log,
	}
}

// HandleFrame processes one SSE frame. Decode failures drop the frame.
func (d *Dispatcher) HandleFrame(eventName string, data []byte) {
	ev, err := DecodeEvent(eventName, data)
	if err != nil {
		if errors.Is(err, ErrUnknownEvent) {
			d.log.Warn().Str("event", eventName).Msg("dropping unknown event")
		} else {
			d.log.Error().Err(err).Str("event", eventName).Msg("dropping malformed event")
		}
		return
	}
	d.Dispatch(ev, time.Now())
}

// Dispatch routes one decoded event. arrivedAt is the receipt timestamp used
// for pending-queue ordering.
func (d *Dispatcher) Dispatch(ev Event, arrivedAt time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch ev := ev.(type) {
	case Ping:
		// Keep-alive only.

	case *StreamStart:
		d.reconciler.Start(*ev)

	case *StreamChunk:
		d.reconciler.Chunk(*ev, arrivedAt)

	case *StreamEnd:
		d.reconciler.End(*ev, arrivedAt)

	case *CreditsUpdate:
		d.store.SetCredits(ev.Credits)

	case *TTSStart:
		d.audio.Start(ev.MessageID)

	case *TTSChunk:
		if err := d.audio.Append(ev.MessageID, ev.Audio); err != nil {
			d.log.Error().Err(err).Str("message_id", ev.MessageID.String()).Msg("dropping audio chunk")
		}

	case *TTSEnd:
		d.finishAudio(ev.MessageID)

	case *TranscriptionStarted:
		status := model.StatusTranscribing
		d.store.UpdateMessage(ev.MessageID, store.MessageUpdate{Status: &status})

	case *TranscriptionComplete:
		complete := model.StatusComplete
		d.store.UpdateMessage(ev.MessageID, store.MessageUpdate{
			Status:  &complete,
			Content: &ev.Content,
		})
		thinking := model.StatusThinking
		d.store.UpdateMessage(model.AssistantPlaceholderID(ev.MessageID), store.MessageUpdate{Status: &thinking})

	case *AudioExtractionStarted:
		status := model.StatusExtractingAudio
		d.store.UpdateMessage(ev.MessageID, store.MessageUpdate{Status: &status})

	case *VideoProgressUpdate:
		d.store.UpdateMessage(ev.MessageID, store.MessageUpdate{
			JobStatus:   &ev.JobStatus,
			JobMetadata: ev.JobMetadata,
		})

	case *MediaComplete:
		d.finishMedia(ev)

	case *TaskFailed:
		failed := model.StatusFailed
		d.store.UpdateMessage(ev.MessageID, store.MessageUpdate{
			Status:   &failed,
			Content:  &ev.Message,
			ClearJob: true,
		})
		if d.notify != nil {
			d.notify("Task failed", ev.Message)
		}

	case *NewMessageForEdit:
		msg := ev.Message
		if msg.Status == "" {
			msg.Status = model.StatusComplete
		}
		d.store.AppendMessage(ev.ConversationID, msg)

	default:
		d.log.Warn().Str("type", string(ev.Type())).Msg("event with no handler")
	}
}

// Reset discards all buffered stream and audio state. Called on transport
// teardown.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reconciler.Reset()
	d.audio.Reset()
}

func (d *Dispatcher) finishAudio(messageID model.ID) {
	data := d.audio.Finish(messageID)
	if len(data) == 0 || d.media == nil {
		return
	}
	localPath, err := d.media.SaveAudio(messageID, data)
	if err != nil {
		d.log.Error().Err(err).Str("message_id", messageID.String()).Msg("saving tts audio")
		return
	}
	complete := model.StatusComplete
	d.store.UpdateMessage(messageID, store.MessageUpdate{
		Status: &complete,
		Attachment: &model.Attachment{
			FileName:  path.Base(localPath),
			FileType:  "audio/mpeg",
			LocalPath: localPath,
		},
	})
}

func (d *Dispatcher) finishMedia(ev *MediaComplete) {
	complete := model.StatusComplete
	update := store.MessageUpdate{
		Status:   &complete,
		ClearJob: true,
	}
	if ev.Content != "" {
		update.Content = &ev.Content
	}
	if ev.MediaURL != "" {
		update.Attachment = &model.Attachment{
			FileName: path.Base(ev.MediaURL),
			FileType: mediaFileType(ev),
			FileURL:  ev.MediaURL,
		}
	}
	d.store.UpdateMessage(ev.MessageID, update)

	// Image generations become conversation context for follow-up turns.
	if ev.Type() == EventImageComplete && ev.MediaURL != "" && ev.ConversationID != "" {
		d.store.SetImageContext(ev.ConversationID, ev.MediaURL)
	}
}

func mediaFileType(ev *MediaComplete) string {
	if ev.FileType != "" {
		return ev.FileType
	}
	switch ev.Type() {
	case EventVideoComplete:
		return "video/mp4"
	case EventTTSComplete:
		return "audio/mpeg"
	case EventImageComplete:
		return "image/png"
	}
	return "application/octet-stream"
}
