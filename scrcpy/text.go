package scrcpy

import "sync"

const textPoolMaxCap = CONTROL_MSG_SERIALIZED_MAX_SIZE

var textPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 64)
		return &b
	},
}

// Text is an owned string payload. The buffer comes from a pool and goes
// back on Release, so a Text must have exactly one owner at a time: whoever
// holds the Command holding it.
type Text struct {
	buf *[]byte
}

// NewText copies s into a pooled buffer.
func NewText(s string) *Text {
	bp := textPool.Get().(*[]byte)
	*bp = append((*bp)[:0], s...)
	return &Text{buf: bp}
}

func (t *Text) Bytes() []byte {
	if t == nil || t.buf == nil {
		return nil
	}
	return *t.buf
}

func (t *Text) String() string {
	return string(t.Bytes())
}

func (t *Text) Len() int {
	return len(t.Bytes())
}

// Released reports whether the buffer has already been handed back.
func (t *Text) Released() bool {
	return t == nil || t.buf == nil
}

// Release returns the buffer to the pool. Calling it again is a no-op.
func (t *Text) Release() {
	if t == nil || t.buf == nil {
		return
	}
	bp := t.buf
	t.buf = nil
	if cap(*bp) > textPoolMaxCap {
		return
	}
	*bp = (*bp)[:0]
	textPool.Put(bp)
}
