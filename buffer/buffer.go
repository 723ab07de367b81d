// The MIT License (MIT)
//
// Copyright (c) 2013-2016 Oryx(ossrs)
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

// Package buffer implements the little-endian primitive reader/writer
// pair every NatNet message is packed through: Buffer for decoding an
// inbound datagram, WriteBuffer for encoding an outbound one.
package buffer

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/oryx-natnet/natnet-go/errs"
)

// Vector3 is a NatNet (x, y, z) triple of 32-bit floats.
type Vector3 [3]float32

// Quaternion is a NatNet (x, y, z, w) quadruple of 32-bit floats.
type Quaternion [4]float32

// MatrixRow is a row of 12 32-bit floats, as used by force plate
// calibration matrices.
type MatrixRow [12]float32

// Buffer is an immutable byte slice with a read cursor.
type Buffer struct {
	data []byte
	pos  int
}

// New wraps data for sequential little-endian reads.
func New(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Remaining returns the number of unread bytes.
func (b *Buffer) Remaining() int {
	return len(b.data) - b.pos
}

// Pos returns the current cursor offset.
func (b *Buffer) Pos() int {
	return b.pos
}

func (b *Buffer) need(n int) error {
	if n < 0 || b.Remaining() < n {
		return errs.New(errs.Malformed, "read past end of buffer")
	}
	return nil
}

// ReadBool reads a single byte and reports whether it is non-zero.
func (b *Buffer) ReadBool() (bool, error) {
	if err := b.need(1); err != nil {
		return false, err
	}
	v := b.data[b.pos] != 0
	b.pos++
	return v, nil
}

// ReadShort reads a signed 16-bit little-endian integer.
func (b *Buffer) ReadShort() (int16, error) {
	if err := b.need(2); err != nil {
		return 0, err
	}
	v := int16(binary.LittleEndian.Uint16(b.data[b.pos:]))
	b.pos += 2
	return v, nil
}

// ReadUShort reads an unsigned 16-bit little-endian integer.
func (b *Buffer) ReadUShort() (uint16, error) {
	if err := b.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(b.data[b.pos:])
	b.pos += 2
	return v, nil
}

// ReadInt reads a signed 32-bit little-endian integer.
func (b *Buffer) ReadInt() (int32, error) {
	if err := b.need(4); err != nil {
		return 0, err
	}
	v := int32(binary.LittleEndian.Uint32(b.data[b.pos:]))
	b.pos += 4
	return v, nil
}

// ReadLong reads a signed 64-bit little-endian integer.
func (b *Buffer) ReadLong() (int64, error) {
	if err := b.need(8); err != nil {
		return 0, err
	}
	v := int64(binary.LittleEndian.Uint64(b.data[b.pos:]))
	b.pos += 8
	return v, nil
}

// ReadULong reads an unsigned 64-bit little-endian integer.
func (b *Buffer) ReadULong() (uint64, error) {
	if err := b.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(b.data[b.pos:])
	b.pos += 8
	return v, nil
}

// ReadFloat reads a 32-bit IEEE-754 little-endian float.
func (b *Buffer) ReadFloat() (float32, error) {
	if err := b.need(4); err != nil {
		return 0, err
	}
	v := math.Float32frombits(binary.LittleEndian.Uint32(b.data[b.pos:]))
	b.pos += 4
	return v, nil
}

// ReadDouble reads a 64-bit IEEE-754 little-endian float.
func (b *Buffer) ReadDouble() (float64, error) {
	if err := b.need(8); err != nil {
		return 0, err
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(b.data[b.pos:]))
	b.pos += 8
	return v, nil
}

// ReadVector reads a Vector3.
func (b *Buffer) ReadVector() (Vector3, error) {
	var v Vector3
	for i := range v {
		f, err := b.ReadFloat()
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}

// ReadQuaternion reads a Quaternion.
func (b *Buffer) ReadQuaternion() (Quaternion, error) {
	var v Quaternion
	for i := range v {
		f, err := b.ReadFloat()
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}

// ReadMatrixRow reads a row of 12 floats.
func (b *Buffer) ReadMatrixRow() (MatrixRow, error) {
	var v MatrixRow
	for i := range v {
		f, err := b.ReadFloat()
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}

// ReadBytes returns n bytes from the cursor. size == 0 returns the
// remainder of the buffer; size < 0 returns from the cursor to
// len(data)+size.
func (b *Buffer) ReadBytes(size int) ([]byte, error) {
	var end int
	switch {
	case size == 0:
		end = len(b.data)
	case size < 0:
		end = len(b.data) + size
	default:
		end = b.pos + size
	}
	if end < b.pos || end > len(b.data) {
		return nil, errs.New(errs.Malformed, "read past end of buffer")
	}
	v := b.data[b.pos:end]
	b.pos = end
	return v, nil
}

// ReadString reads a string. size == 0 reads to the first NUL and
// advances the cursor past it. size > 0 consumes exactly size bytes and
// returns the substring up to the first NUL found within that window.
func (b *Buffer) ReadString(size int) (string, error) {
	if size == 0 {
		rest := b.data[b.pos:]
		idx := bytes.IndexByte(rest, 0)
		if idx < 0 {
			return "", errs.New(errs.Malformed, "unterminated string")
		}
		s := string(rest[:idx])
		b.pos += idx + 1
		return s, nil
	}

	if err := b.need(size); err != nil {
		return "", err
	}
	window := b.data[b.pos : b.pos+size]
	idx := bytes.IndexByte(window, 0)
	var s string
	if idx < 0 {
		s = string(window)
	} else {
		s = string(window[:idx])
	}
	b.pos += size
	return s, nil
}

// WriteBuffer is the dual of Buffer: a growable little-endian byte
// sink with an in-place patch for previously-written fields.
type WriteBuffer struct {
	data []byte
}

// NewWrite returns an empty WriteBuffer.
func NewWrite() *WriteBuffer {
	return &WriteBuffer{}
}

// Bytes returns the bytes written so far.
func (w *WriteBuffer) Bytes() []byte {
	return w.data
}

// Len returns the number of bytes written so far.
func (w *WriteBuffer) Len() int {
	return len(w.data)
}

// WriteBool appends a single 0/1 byte.
func (w *WriteBuffer) WriteBool(v bool) {
	if v {
		w.data = append(w.data, 1)
	} else {
		w.data = append(w.data, 0)
	}
}

// WriteShort appends a signed 16-bit little-endian integer.
func (w *WriteBuffer) WriteShort(v int16) {
	w.data = binary.LittleEndian.AppendUint16(w.data, uint16(v))
}

// WriteUShort appends an unsigned 16-bit little-endian integer.
func (w *WriteBuffer) WriteUShort(v uint16) {
	w.data = binary.LittleEndian.AppendUint16(w.data, v)
}

// SetShort patches a previously-written 16-bit little-endian field at index.
func (w *WriteBuffer) SetShort(index int, v int16) {
	binary.LittleEndian.PutUint16(w.data[index:], uint16(v))
}

// WriteInt appends a signed 32-bit little-endian integer.
func (w *WriteBuffer) WriteInt(v int32) {
	w.data = binary.LittleEndian.AppendUint32(w.data, uint32(v))
}

// WriteLong appends a signed 64-bit little-endian integer.
func (w *WriteBuffer) WriteLong(v int64) {
	w.data = binary.LittleEndian.AppendUint64(w.data, uint64(v))
}

// WriteULong appends an unsigned 64-bit little-endian integer.
func (w *WriteBuffer) WriteULong(v uint64) {
	w.data = binary.LittleEndian.AppendUint64(w.data, v)
}

// WriteFloat appends a 32-bit IEEE-754 little-endian float.
func (w *WriteBuffer) WriteFloat(v float32) {
	w.data = binary.LittleEndian.AppendUint32(w.data, math.Float32bits(v))
}

// WriteDouble appends a 64-bit IEEE-754 little-endian float.
func (w *WriteBuffer) WriteDouble(v float64) {
	w.data = binary.LittleEndian.AppendUint64(w.data, math.Float64bits(v))
}

// WriteVector appends a Vector3.
func (w *WriteBuffer) WriteVector(v Vector3) {
	for _, f := range v {
		w.WriteFloat(f)
	}
}

// WriteQuaternion appends a Quaternion.
func (w *WriteBuffer) WriteQuaternion(v Quaternion) {
	for _, f := range v {
		w.WriteFloat(f)
	}
}

// WriteMatrixRow appends a row of 12 floats.
func (w *WriteBuffer) WriteMatrixRow(v MatrixRow) {
	for _, f := range v {
		w.WriteFloat(f)
	}
}

// WriteBytes appends value, then zero-pads up to size bytes total if
// value is shorter than size. size == 0 means no padding.
func (w *WriteBuffer) WriteBytes(value []byte, size int) {
	w.data = append(w.data, value...)
	if len(value) < size {
		w.data = append(w.data, make([]byte, size-len(value))...)
	}
}

// WriteString appends value NUL-terminated, then zero-pads up to size
// bytes total (including the terminator) if shorter. size == 0 means no padding.
func (w *WriteBuffer) WriteString(value string, size int) {
	w.data = append(w.data, value...)
	w.data = append(w.data, 0)
	if len(value)+1 < size {
		w.data = append(w.data, make([]byte, size-len(value)-1)...)
	}
}
