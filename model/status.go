package model

// MessageStatus is the lifecycle state of a message. Exactly one status holds
// at a time. The happy path is linear:
//
//	uploading → waiting → thinking|transcribing|extracting_audio → streaming → complete
//
// failed and error are reachable from any non-terminal state and are terminal
// themselves, as is complete. Re-sending a message creates a fresh message
// rather than cycling an old one.
type MessageStatus string

const (
	StatusUploading       MessageStatus = "uploading"
	StatusWaiting         MessageStatus = "waiting"
	StatusThinking        MessageStatus = "thinking"
	StatusTranscribing    MessageStatus = "transcribing"
	StatusExtractingAudio MessageStatus = "extracting_audio"
	StatusStreaming       MessageStatus = "streaming"
	StatusComplete        MessageStatus = "complete"
	StatusError           MessageStatus = "error"
	StatusFailed          MessageStatus = "failed"
)

// rank orders the linear pipeline. Statuses in the same stage share a rank.
var statusRank = map[MessageStatus]int{
	StatusUploading:       0,
	StatusWaiting:         1,
	StatusThinking:        2,
	StatusTranscribing:    2,
	StatusExtractingAudio: 2,
	StatusStreaming:       3,
	StatusComplete:        4,
}

// Terminal reports whether no further transitions are allowed.
func (s MessageStatus) Terminal() bool {
	return s == StatusComplete || s == StatusError || s == StatusFailed
}

// Valid reports whether s names a known status.
func (s MessageStatus) Valid() bool {
	if s == StatusError || s == StatusFailed {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// CanTransition reports whether moving from s to next respects the state
// machine: forward-only along the pipeline, failure states from any
// non-terminal state.
func (s MessageStatus) CanTransition(next MessageStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s.Terminal() {
		return false
	}
	if next == StatusError || next == StatusFailed {
		return true
	}
	return statusRank[next] > statusRank[s]
}
