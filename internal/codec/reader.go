package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Reader decodes a codec stream using one byte of lookahead.
//
// Reader never panics on bad input. The first problem is recorded and from
// then on the reader behaves as if the stream had ended, so decode loops
// written against AtEndOfRecord / AtEndOfGroup always terminate.
type Reader struct {
	r   *bufio.Reader
	err error
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Err returns nil or an error wrapping ErrMalformed.
func (r *Reader) Err() error {
	return r.err
}

// Fail marks the stream malformed. Decoders call it for tags they do not know.
func (r *Reader) Fail(format string, args ...any) {
	if r.err != nil {
		return
	}
	r.err = fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

func (r *Reader) peek() (byte, bool) {
	if r.err != nil {
		return 0, false
	}
	b, err := r.r.Peek(1)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			r.Fail("peeking: %v", err)
		}
		return 0, false
	}
	return b[0], true
}

// AtEOF reports whether nothing more can be read.
func (r *Reader) AtEOF() bool {
	_, ok := r.peek()
	return !ok
}

// AtEndOfRecord reports whether the next byte closes a record. The end of
// the stream counts as an implicit record end. Nothing is consumed.
func (r *Reader) AtEndOfRecord() bool {
	b, ok := r.peek()
	return !ok || b == RecordMarker
}

// AtEndOfGroup reports whether the next byte starts another group or ends the
// record. Nothing is consumed.
func (r *Reader) AtEndOfGroup() bool {
	b, ok := r.peek()
	return !ok || b == RecordMarker || b == GroupMarker
}

// NextGroup consumes a group header and returns its tag. It returns false at
// the end of a record; any byte other than a group marker there is malformed.
func (r *Reader) NextGroup() (byte, bool) {
	return r.header(GroupMarker, RecordMarker)
}

// NextUnit consumes a unit header and returns its tag. It returns false at
// the end of a group; any byte other than a unit marker there is malformed.
func (r *Reader) NextUnit() (byte, bool) {
	return r.header(UnitMarker, RecordMarker, GroupMarker)
}

func (r *Reader) header(marker byte, stops ...byte) (byte, bool) {
	b, ok := r.peek()
	if !ok {
		return 0, false
	}
	if b != marker {
		for _, s := range stops {
			if b == s {
				return 0, false
			}
		}
		r.Fail("unexpected byte 0x%02x where 0x%02x was expected", b, marker)
		return 0, false
	}
	var hdr [2]byte
	if _, err := io.ReadFull(r.r, hdr[:]); err != nil {
		r.Fail("truncated header")
		return 0, false
	}
	return hdr[1], true
}

// EndRecord consumes a record marker. At the end of the stream it does
// nothing; anything else is malformed.
func (r *Reader) EndRecord() {
	b, ok := r.peek()
	if !ok {
		return
	}
	if b != RecordMarker {
		r.Fail("unexpected byte 0x%02x where a record marker was expected", b)
		return
	}
	_, _ = r.r.ReadByte()
}

// Int reads an integer payload.
func (r *Reader) Int() int32 {
	if r.err != nil {
		return 0
	}
	var buf [4]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		r.Fail("truncated integer")
		return 0
	}
	return int32(binary.LittleEndian.Uint32(buf[:]))
}

// String reads a length-prefixed payload as a string.
func (r *Reader) String() string {
	return string(r.Bytes())
}

// Bytes reads a length-prefixed payload. A zero length yields an empty,
// non-nil slice.
func (r *Reader) Bytes() []byte {
	if r.err != nil {
		return nil
	}
	var l [lengthSize]byte
	if _, err := io.ReadFull(r.r, l[:]); err != nil {
		r.Fail("truncated length")
		return nil
	}
	n := binary.LittleEndian.Uint32(l[:])
	if n > MaxBlockLength {
		r.Fail("block length %d exceeds maximum of %d", n, MaxBlockLength)
		return nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		r.Fail("truncated block: want %d bytes", n)
		return nil
	}
	return b
}
