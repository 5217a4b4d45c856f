package codec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Writer emits a codec stream. The first write error is kept and returned
// by Flush; later calls are no-ops.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter returns a Writer that buffers into w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Group starts a group with the given tag.
func (w *Writer) Group(tag byte) {
	w.write(GroupMarker, tag)
}

// EndRecord writes a record marker. Call it once more after the last
// element of a list to close the list.
func (w *Writer) EndRecord() {
	w.write(RecordMarker)
}

// Int writes an integer unit.
func (w *Writer) Int(tag byte, n int32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(n))
	w.write(UnitMarker, tag)
	w.write(buf[:]...)
}

// String writes a length-prefixed string unit.
func (w *Writer) String(tag byte, s string) {
	w.Bytes(tag, []byte(s))
}

// Bytes writes a length-prefixed byte block unit.
func (w *Writer) Bytes(tag byte, b []byte) {
	if w.err == nil && len(b) > MaxBlockLength {
		w.err = fmt.Errorf("codec: block of %d bytes exceeds maximum of %d", len(b), MaxBlockLength)
		return
	}
	var l [lengthSize]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(b)))
	w.write(UnitMarker, tag)
	w.write(l[:]...)
	w.write(b...)
}

// Flush writes any buffered data and reports the first error seen.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("codec: flushing: %w", err)
	}
	return nil
}

// Err returns the first error seen so far.
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) write(b ...byte) {
	if w.err != nil {
		return
	}
	if _, err := w.w.Write(b); err != nil {
		w.err = fmt.Errorf("codec: writing: %w", err)
	}
}
