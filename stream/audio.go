package stream

import (
	"bytes"
	"encoding/base64"

	"github.com/pkg/errors"

	"wisdar/model"
)

// audioBuffers accumulates instructed-TTS audio per message. Chunks arrive
// base64-encoded and are decoded on append; the assembled bytes are handed
// off once on finish. TTS audio has no ordering problem (the backend emits
// start before any chunk), so no pending queue is needed here.
type audioBuffers struct {
	buffers map[model.ID]*bytes.Buffer
}

func newAudioBuffers() *audioBuffers {
	return &audioBuffers{buffers: make(map[model.ID]*bytes.Buffer)}
}

func (a *audioBuffers) Start(id model.ID) {
	a.buffers[id] = &bytes.Buffer{}
}

func (a *audioBuffers) Append(id model.ID, encoded string) error {
	buf := a.buffers[id]
	if buf == nil {
		// Tolerate a lost start: begin buffering at the first chunk.
		buf = &bytes.Buffer{}
		a.buffers[id] = buf
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return errors.Wrap(err, "decoding audio chunk")
	}
	_, _ = buf.Write(raw)
	return nil
}

// Finish returns the assembled audio and releases the buffer. Returns nil
// when no chunk ever arrived.
func (a *audioBuffers) Finish(id model.ID) []byte {
	buf := a.buffers[id]
	if buf == nil {
		return nil
	}
	delete(a.buffers, id)
	return buf.Bytes()
}

func (a *audioBuffers) Reset() {
	a.buffers = make(map[model.ID]*bytes.Buffer)
}
