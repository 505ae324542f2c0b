package stream

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"wisdar/model"
)

// DefaultPendingTTL bounds how long a pending queue may wait for its
// stream_start. The backend assigns a message id before publishing any chunk,
// so a start that has not arrived within this window is not coming.
const DefaultPendingTTL = 10 * time.Minute

// pendingEvent is a chunk or end that arrived before its stream_start.
type pendingEvent struct {
	event     Event
	arrivedAt time.Time
}

// messageBuffer tracks one message's stream state. Inactive buffers hold a
// queue of early events; activation replays the queue and switches to
// immediate application.
type messageBuffer struct {
	active    bool
	queue     []pendingEvent
	createdAt time.Time
}

// Reconciler guarantees ordered, gap-free application of stream events per
// message. Events for a message id may arrive before the stream_start that
// announces the message (the SSE channel races the HTTP send response); until
// the start arrives they are queued with their receipt timestamp, then
// replayed in timestamp order.
//
// The reconciler is not goroutine safe; the dispatcher serializes access.
type Reconciler struct {
	store      Sink
	buffers    map[model.ID]*messageBuffer
	pendingTTL time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

// Sink is the slice of the conversation store the reconciler mutates.
type Sink interface {
	StartStreaming(conversationID model.ID, msg model.Message)
	AppendStreamChunk(messageID model.ID, content string)
	EndStreaming(messageID model.ID)
}

// NewReconciler creates a reconciler applying events to sink.
func NewReconciler(sink Sink, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:      sink,
		buffers:    make(map[model.ID]*messageBuffer),
		pendingTTL: DefaultPendingTTL,
		now:        time.Now,
		log:        log,
	}
}

// Start activates the buffer for the announced message, applies the start to
// the store, then replays any queued events in arrival-timestamp order
// (stable, so ties keep arrival order). A replayed end finalizes the message
// and drops the buffer along with any residual queue.
func (r *Reconciler) Start(ev StreamStart) {
	id := ev.Message.ID
	buf := r.buffers[id]
	if buf == nil {
		buf = &messageBuffer{createdAt: r.now()}
		r.buffers[id] = buf
	}
	buf.active = true

	r.store.StartStreaming(ev.Message.ConversationID, ev.Message)

	if len(buf.queue) == 0 {
		return
	}
	queue := buf.queue
	buf.queue = nil
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].arrivedAt.Before(queue[j].arrivedAt)
	})
	r.log.Debug().Str("message_id", id.String()).Int("count", len(queue)).Msg("replaying buffered stream events")
	for _, pending := range queue {
		switch e := pending.event.(type) {
		case *StreamChunk:
			r.store.AppendStreamChunk(e.MessageID, e.Content)
		case *StreamEnd:
			r.finalize(e.MessageID)
			return
		}
	}
}

// Chunk applies a chunk immediately when the buffer is active, otherwise
// queues it with its receipt timestamp.
func (r *Reconciler) Chunk(ev StreamChunk, arrivedAt time.Time) {
	if buf := r.buffers[ev.MessageID]; buf != nil && buf.active {
		r.store.AppendStreamChunk(ev.MessageID, ev.Content)
		return
	}
	r.enqueue(ev.MessageID, &ev, arrivedAt)
}

// End finalizes the message when the buffer is active, otherwise queues the
// end for replay.
func (r *Reconciler) End(ev StreamEnd, arrivedAt time.Time) {
	if buf := r.buffers[ev.MessageID]; buf != nil && buf.active {
		r.finalize(ev.MessageID)
		return
	}
	r.enqueue(ev.MessageID, &ev, arrivedAt)
}

func (r *Reconciler) finalize(id model.ID) {
	r.store.EndStreaming(id)
	delete(r.buffers, id)
}

func (r *Reconciler) enqueue(id model.ID, ev Event, arrivedAt time.Time) {
	buf := r.buffers[id]
	if buf == nil {
		buf = &messageBuffer{createdAt: r.now()}
		r.buffers[id] = buf
	}
	buf.queue = append(buf.queue, pendingEvent{event: ev, arrivedAt: arrivedAt})
	r.evictStale()
}

// evictStale drops inactive buffers whose stream_start never arrived within
// the TTL. Message ids are unique per session, so a dropped queue can never
// be needed again.
func (r *Reconciler) evictStale() {
	cutoff := r.now().Add(-r.pendingTTL)
	for id, buf := range r.buffers {
		if !buf.active && buf.createdAt.Before(cutoff) {
			r.log.Warn().Str("message_id", id.String()).Int("dropped", len(buf.queue)).Msg("evicting stale pending queue")
			delete(r.buffers, id)
		}
	}
}

// Reset discards all buffers and queues. Called on transport teardown.
func (r *Reconciler) Reset() {
	r.buffers = make(map[model.ID]*messageBuffer)
}

// PendingCount reports queued events for a message id; used by tests.
func (r *Reconciler) PendingCount(id model.ID) int {
	if buf := r.buffers[id]; buf != nil {
		return len(buf.queue)
	}
	return 0
}
