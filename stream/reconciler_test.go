package stream

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisdar/model"
	"wisdar/store"
)

func seedStreamingTarget(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(zerolog.Nop())
	s.SetConversations(func([]model.Conversation) []model.Conversation {
		return []model.Conversation{{
			ID:     "1",
			Title:  "conv",
			Active: true,
			Messages: []model.Message{
				{ID: "u1", Role: model.RoleUser, Content: "q", Status: model.StatusComplete},
				{ID: "assistant-u1", Role: model.RoleAssistant, Status: model.StatusThinking},
			},
		}}
	})
	return s
}

func assistantMessage(t *testing.T, s *store.Store) model.Message {
	t.Helper()
	conversations := s.Conversations()
	require.Len(t, conversations, 1)
	msgs := conversations[0].Messages
	require.Len(t, msgs, 2)
	return msgs[1]
}

func ts(i int) time.Time {
	return time.Unix(1700000000, int64(i)*int64(time.Millisecond))
}

// Events delivered in any order, with stream_end delivered last, must yield
// the chunks concatenated in delivery-timestamp order and a complete status.
func TestReconcilerPermutations(t *testing.T) {
	chunks := []string{"A", "B", "C"}

	// All orderings of {start, A, B, C}; end always arrives last.
	for _, perm := range permutations(4) {
		name := permName(perm)
		t.Run(name, func(t *testing.T) {
			s := seedStreamingTarget(t)
			r := NewReconciler(s, zerolog.Nop())

			var delivered []string
			for i, idx := range perm {
				if idx == 0 {
					r.Start(StreamStart{Message: model.Message{ID: "m1", ConversationID: "1", Role: model.RoleAssistant}})
					continue
				}
				chunk := chunks[idx-1]
				delivered = append(delivered, chunk)
				r.Chunk(StreamChunk{MessageID: "m1", Content: chunk}, ts(i))
			}
			r.End(StreamEnd{MessageID: "m1"}, ts(len(perm)))

			got := assistantMessage(t, s)
			assert.Equal(t, model.ID("m1"), got.ID)
			assert.Equal(t, strings.Join(delivered, ""), got.Content)
			assert.Equal(t, model.StatusComplete, got.Status)
			assert.Zero(t, r.PendingCount("m1"))
		})
	}
}

// Chunks queued before stream_start replay by timestamp, not arrival order:
// chunk "A" at ts=2 then chunk "B" at ts=1 must yield "BA".
func TestReconcilerReplaysByTimestamp(t *testing.T) {
	s := seedStreamingTarget(t)
	r := NewReconciler(s, zerolog.Nop())

	r.Chunk(StreamChunk{MessageID: "m1", Content: "A"}, ts(2))
	r.Chunk(StreamChunk{MessageID: "m1", Content: "B"}, ts(1))
	require.Equal(t, 2, r.PendingCount("m1"))

	r.Start(StreamStart{Message: model.Message{ID: "m1", ConversationID: "1", Role: model.RoleAssistant}})

	got := assistantMessage(t, s)
	assert.Equal(t, "BA", got.Content)
	assert.Equal(t, model.StatusStreaming, got.Status)
	assert.Zero(t, r.PendingCount("m1"))
}

// Timestamp ties keep arrival order (stable sort).
func TestReconcilerTimestampTiesKeepArrivalOrder(t *testing.T) {
	s := seedStreamingTarget(t)
	r := NewReconciler(s, zerolog.Nop())

	same := ts(1)
	r.Chunk(StreamChunk{MessageID: "m1", Content: "x"}, same)
	r.Chunk(StreamChunk{MessageID: "m1", Content: "y"}, same)
	r.Chunk(StreamChunk{MessageID: "m1", Content: "z"}, same)
	r.Start(StreamStart{Message: model.Message{ID: "m1", ConversationID: "1", Role: model.RoleAssistant}})

	assert.Equal(t, "xyz", assistantMessage(t, s).Content)
}

// A replayed end finalizes the message and drops anything queued after it.
func TestReconcilerReplayedEndDropsResidualQueue(t *testing.T) {
	s := seedStreamingTarget(t)
	r := NewReconciler(s, zerolog.Nop())

	r.Chunk(StreamChunk{MessageID: "m1", Content: "A"}, ts(1))
	r.End(StreamEnd{MessageID: "m1"}, ts(2))
	r.Chunk(StreamChunk{MessageID: "m1", Content: "late"}, ts(3))
	r.Start(StreamStart{Message: model.Message{ID: "m1", ConversationID: "1", Role: model.RoleAssistant}})

	got := assistantMessage(t, s)
	assert.Equal(t, "A", got.Content)
	assert.Equal(t, model.StatusComplete, got.Status)
	assert.Zero(t, r.PendingCount("m1"))
}

// Independent messages keep independent buffers.
func TestReconcilerIndependentMessages(t *testing.T) {
	s := store.New(zerolog.Nop())
	s.SetConversations(func([]model.Conversation) []model.Conversation {
		return []model.Conversation{
			{ID: "1", Active: true},
			{ID: "2"},
		}
	})
	r := NewReconciler(s, zerolog.Nop())

	r.Chunk(StreamChunk{MessageID: "m2", Content: "other"}, ts(1))
	r.Start(StreamStart{Message: model.Message{ID: "m1", ConversationID: "1", Role: model.RoleAssistant, Content: "one"}})
	r.End(StreamEnd{MessageID: "m1"}, ts(2))

	assert.Equal(t, 1, r.PendingCount("m2"))
	assert.Zero(t, r.PendingCount("m1"))
}

// Queues whose stream_start never arrives are evicted once the TTL passes.
func TestReconcilerEvictsStaleQueues(t *testing.T) {
	s := seedStreamingTarget(t)
	r := NewReconciler(s, zerolog.Nop())

	current := ts(0)
	r.now = func() time.Time { return current }
	r.pendingTTL = time.Minute

	r.Chunk(StreamChunk{MessageID: "orphan", Content: "A"}, current)
	require.Equal(t, 1, r.PendingCount("orphan"))

	current = current.Add(2 * time.Minute)
	r.Chunk(StreamChunk{MessageID: "m1", Content: "B"}, current)

	assert.Zero(t, r.PendingCount("orphan"))
	assert.Equal(t, 1, r.PendingCount("m1"))
}

func TestReconcilerResetDropsEverything(t *testing.T) {
	s := seedStreamingTarget(t)
	r := NewReconciler(s, zerolog.Nop())

	r.Chunk(StreamChunk{MessageID: "m1", Content: "A"}, ts(1))
	r.Reset()
	assert.Zero(t, r.PendingCount("m1"))
}

// permutations returns all orderings of [0, n).
func permutations(n int) [][]int {
	base := make([]int, n)
	for i := range base {
		base[i] = i
	}
	var out [][]int
	var recurse func(prefix, rest []int)
	recurse = func(prefix, rest []int) {
		if len(rest) == 0 {
			out = append(out, append([]int(nil), prefix...))
			return
		}
		for i := range rest {
			next := append(append([]int(nil), rest[:i]...), rest[i+1:]...)
			recurse(append(prefix, rest[i]), next)
		}
	}
	recurse(nil, base)
	return out
}

func permName(perm []int) string {
	parts := make([]string, len(perm))
	for i, p := range perm {
		if p == 0 {
			parts[i] = "start"
		} else {
			parts[i] = fmt.Sprintf("c%d", p)
		}
	}
	return strings.Join(parts, "_")
}
