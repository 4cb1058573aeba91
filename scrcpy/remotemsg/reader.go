package remotemsg

import (
	"errors"
	"fmt"
	"io"
)

// ErrMessageTooLarge is returned when a single message does not fit in
// MaxMessageSize bytes.
var ErrMessageTooLarge = fmt.Errorf("remotemsg: message exceeds %d bytes", MaxMessageSize)

// Reader reassembles messages from a byte stream delivered in arbitrary
// chunks.
type Reader struct {
	r    io.Reader
	buf  []byte
	head int // start of unconsumed bytes
	tail int // end of valid bytes
	err  error
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, buf: make([]byte, MaxMessageSize)}
}

// Next returns the next message. Bytes that arrive together with a read
// error are decoded before that error is returned. A read returning no data
// and no error is reported as io.ErrNoProgress. After ErrMalformed or
// ErrMessageTooLarge the stream cannot be resynchronized.
func (r *Reader) Next() (Record, error) {
	for {
		if r.tail > r.head {
			rec, n, err := DeserializeRecord(r.buf[r.head:r.tail])
			r.head += n
			switch {
			case err == nil:
				return rec, nil
			case !errors.Is(err, ErrIncomplete):
				r.err = err
				return Record{}, err
			}
		}
		if r.err != nil {
			if r.err == io.EOF && r.tail > r.head {
				return Record{}, io.ErrUnexpectedEOF
			}
			return Record{}, r.err
		}

		// shift the partial message to the front to make room
		if r.head > 0 {
			copy(r.buf, r.buf[r.head:r.tail])
			r.tail -= r.head
			r.head = 0
		}
		if r.tail == len(r.buf) {
			r.err = ErrMessageTooLarge
			return Record{}, r.err
		}

		n, err := r.r.Read(r.buf[r.tail:])
		if n < 0 {
			n = 0
		}
		r.tail += n
		if err != nil {
			r.err = err
			continue
		}
		if n == 0 {
			r.err = io.ErrNoProgress
		}
	}
}

// Buffered is the number of bytes received but not yet decoded.
func (r *Reader) Buffered() int {
	return r.tail - r.head
}
