package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrTruncated marks a stream that ended or turned malformed mid-primitive.
// Once a read fails this way the stream position is untrustworthy, so the
// owning connection must be closed; the codec never resynchronizes.
var ErrTruncated = errors.New("truncated or malformed stream")

// maxBlockLen caps length-prefixed byte blocks. Checksums and build
// fingerprints are tiny; anything near this is a framing error.
const maxBlockLen = 16 << 20

// Reader decodes protocol primitives from a byte stream. All integers are
// big-endian. A clean end-of-stream on a primitive boundary surfaces as
// io.EOF; a partial read surfaces as ErrTruncated.
type Reader struct {
	r io.Reader
}

// NewReader returns a Reader decoding from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (r *Reader) read(what string, buf []byte) error {
	_, err := io.ReadFull(r.r, buf)
	switch {
	case err == nil:
		return nil
	case err == io.EOF:
		return io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("read %s: %w", what, ErrTruncated)
	default:
		return fmt.Errorf("read %s: %w", what, err)
	}
}

// Int32 reads a big-endian 32-bit signed integer.
func (r *Reader) Int32() (int32, error) {
	var buf [4]byte
	if err := r.read("int32", buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

// Int64 reads a big-endian 64-bit signed integer.
func (r *Reader) Int64() (int64, error) {
	var buf [8]byte
	if err := r.read("int64", buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}

// Bool reads a single byte; any nonzero value is true.
func (r *Reader) Bool() (bool, error) {
	var buf [1]byte
	if err := r.read("bool", buf[:]); err != nil {
		return false, err
	}
	return buf[0] != 0, nil
}

// String reads a UTF-8 string prefixed by its 16-bit byte length.
func (r *Reader) String() (string, error) {
	var lbuf [2]byte
	if err := r.read("string length", lbuf[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint16(lbuf[:])
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, int(n))
	if err := r.read("string payload", buf); err != nil {
		if err == io.EOF {
			// Stream ended inside a string: truncation, not a clean close.
			return "", fmt.Errorf("read string payload: %w", ErrTruncated)
		}
		return "", err
	}
	return string(buf), nil
}

// Bytes reads a raw byte block prefixed by its 32-bit length. A zero
// length yields nil, which the command set uses to mean "absent".
func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.Int32()
	if err != nil {
		return nil, err
	}
	if n < 0 || n > maxBlockLen {
		return nil, fmt.Errorf("byte block length %d: %w", n, ErrTruncated)
	}
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, int(n))
	if err := r.read("byte block", buf); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("read byte block: %w", ErrTruncated)
		}
		return nil, err
	}
	return buf, nil
}

// Writer encodes protocol primitives onto a byte stream.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer encoding to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) write(what string, buf []byte) error {
	if _, err := w.w.Write(buf); err != nil {
		return fmt.Errorf("write %s: %w", what, err)
	}
	return nil
}

// Int32 writes a big-endian 32-bit signed integer.
func (w *Writer) Int32(v int32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	return w.write("int32", buf[:])
}

// Int64 writes a big-endian 64-bit signed integer.
func (w *Writer) Int64(v int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return w.write("int64", buf[:])
}

// Bool writes a single byte, 1 for true and 0 for false.
func (w *Writer) Bool(v bool) error {
	buf := [1]byte{0}
	if v {
		buf[0] = 1
	}
	return w.write("bool", buf[:])
}

// String writes a UTF-8 string prefixed by its 16-bit byte length.
func (w *Writer) String(s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("string of %d bytes exceeds 16-bit length prefix", len(s))
	}
	var lbuf [2]byte
	binary.BigEndian.PutUint16(lbuf[:], uint16(len(s)))
	if err := w.write("string length", lbuf[:]); err != nil {
		return err
	}
	return w.write("string payload", []byte(s))
}

// Bytes writes a raw byte block prefixed by its 32-bit length.
func (w *Writer) Bytes(b []byte) error {
	if len(b) > maxBlockLen {
		return fmt.Errorf("byte block of %d bytes exceeds limit", len(b))
	}
	if err := w.Int32(int32(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	return w.write("byte block", b)
}
