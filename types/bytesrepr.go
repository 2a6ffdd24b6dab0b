package types

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"
)

// Common errors returned by the byte codec
var (
	ErrEarlyEndOfStream = errors.New("early end of stream")
	ErrFormatting       = errors.New("formatting error")
	ErrLeftOverBytes    = errors.New("left over bytes")
)

// maxBigUintBytes bounds the magnitude of U512 values
const maxBigUintBytes = 64

// Writer accumulates the binary representation of values.
type Writer struct {
	buf []byte
}

// Bytes returns the accumulated bytes
func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) WriteRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *Writer) WriteU8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteU8(1)
		return
	}
	w.WriteU8(0)
}

func (w *Writer) WriteU32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) WriteI32(v int32) {
	w.WriteU32(uint32(v))
}

func (w *Writer) WriteU64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

func (w *Writer) WriteI64(v int64) {
	w.WriteU64(uint64(v))
}

// WriteBytes writes a u32 length prefix followed by b
func (w *Writer) WriteBytes(b []byte) {
	w.WriteU32(uint32(len(b)))
	w.WriteRaw(b)
}

func (w *Writer) WriteString(s string) {
	w.WriteBytes([]byte(s))
}

// WriteBigUint writes a length byte followed by the little-endian magnitude
// of v with trailing zero bytes trimmed.
func (w *Writer) WriteBigUint(v *big.Int, maxBytes int) error {
	if v == nil {
		v = new(big.Int)
	}
	if v.Sign() < 0 {
		return fmt.Errorf("%w: negative unsigned integer", ErrFormatting)
	}
	be := v.Bytes()
	if len(be) > maxBytes {
		return fmt.Errorf("%w: integer overflows %d bytes", ErrFormatting, maxBytes)
	}
	w.WriteU8(uint8(len(be)))
	for i := len(be) - 1; i >= 0; i-- {
		w.WriteU8(be[i])
	}
	return nil
}

// Reader consumes a binary representation produced by Writer.
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a reader over data
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining returns the number of unread bytes
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// Finish fails if unread bytes remain
func (r *Reader) Finish() error {
	if r.Remaining() != 0 {
		return fmt.Errorf("%w: %d bytes", ErrLeftOverBytes, r.Remaining())
	}
	return nil
}

func (r *Reader) ReadRaw(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, ErrEarlyEndOfStream
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

func (r *Reader) ReadU8() (uint8, error) {
	if r.Remaining() < 1 {
		return 0, ErrEarlyEndOfStream
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadU8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: invalid bool byte %d", ErrFormatting, v)
	}
}

func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.ReadRaw(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.ReadRaw(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

// ReadBytes reads a u32 length-prefixed byte slice
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	return r.ReadRaw(int(n))
}

func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: string is not valid utf-8", ErrFormatting)
	}
	return string(b), nil
}

func (r *Reader) ReadBigUint(maxBytes int) (*big.Int, error) {
	n, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if int(n) > maxBytes {
		return nil, fmt.Errorf("%w: integer length %d exceeds %d", ErrFormatting, n, maxBytes)
	}
	le, err := r.ReadRaw(int(n))
	if err != nil {
		return nil, err
	}
	be := make([]byte, len(le))
	for i := range le {
		be[len(le)-1-i] = le[i]
	}
	return new(big.Int).SetBytes(be), nil
}
