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

package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScalarRoundTrip(t *testing.T) {
	w := NewWrite()
	w.WriteBool(true)
	w.WriteShort(-7)
	w.WriteUShort(7)
	w.WriteInt(-123456)
	w.WriteLong(-123456789012)
	w.WriteULong(123456789012)
	w.WriteFloat(1.5)
	w.WriteDouble(2.25)
	w.WriteVector(Vector3{1, 2, 3})
	w.WriteQuaternion(Quaternion{0, 0, 0, 1})

	b := New(w.Bytes())

	bv, err := b.ReadBool()
	require.NoError(t, err)
	require.True(t, bv)

	sv, err := b.ReadShort()
	require.NoError(t, err)
	require.EqualValues(t, -7, sv)

	usv, err := b.ReadUShort()
	require.NoError(t, err)
	require.EqualValues(t, 7, usv)

	iv, err := b.ReadInt()
	require.NoError(t, err)
	require.EqualValues(t, -123456, iv)

	lv, err := b.ReadLong()
	require.NoError(t, err)
	require.EqualValues(t, -123456789012, lv)

	ulv, err := b.ReadULong()
	require.NoError(t, err)
	require.EqualValues(t, 123456789012, ulv)

	fv, err := b.ReadFloat()
	require.NoError(t, err)
	require.Equal(t, float32(1.5), fv)

	dv, err := b.ReadDouble()
	require.NoError(t, err)
	require.Equal(t, 2.25, dv)

	vec, err := b.ReadVector()
	require.NoError(t, err)
	require.Equal(t, Vector3{1, 2, 3}, vec)

	quat, err := b.ReadQuaternion()
	require.NoError(t, err)
	require.Equal(t, Quaternion{0, 0, 0, 1}, quat)

	require.Zero(t, b.Remaining())
}

func TestReadStringNulTerminated(t *testing.T) {
	b := New([]byte("hello\x00world"))
	s, err := b.ReadString(0)
	require.NoError(t, err)
	require.Equal(t, "hello", s)
	require.Equal(t, 6, b.Pos())
}

func TestReadStringFixedWidth(t *testing.T) {
	data := append([]byte("abc"), make([]byte, 7)...)
	b := New(data)
	s, err := b.ReadString(10)
	require.NoError(t, err)
	require.Equal(t, "abc", s)
	require.Equal(t, 10, b.Pos())
	require.Zero(t, b.Remaining())
}

func TestReadBytesZeroAndNegative(t *testing.T) {
	b := New([]byte{1, 2, 3, 4, 5})
	_, _ = b.ReadBytes(2)
	rest, err := b.ReadBytes(0)
	require.NoError(t, err)
	require.Equal(t, []byte{3, 4, 5}, rest)

	b2 := New([]byte{1, 2, 3, 4, 5})
	head, err := b2.ReadBytes(-2)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, head)
}

func TestReadPastEndIsMalformed(t *testing.T) {
	b := New([]byte{1, 2})
	_, err := b.ReadInt()
	require.Error(t, err)
}

func TestSetShortPatchesEnvelope(t *testing.T) {
	w := NewWrite()
	w.WriteUShort(0)
	w.WriteUShort(0)
	w.WriteBytes([]byte{1, 2, 3}, 0)
	w.SetShort(2, int16(len(w.Bytes())-4))

	b := New(w.Bytes())
	_, _ = b.ReadUShort()
	size, err := b.ReadShort()
	require.NoError(t, err)
	require.EqualValues(t, 3, size)
}
