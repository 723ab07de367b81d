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

package data

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oryx-natnet/natnet-go/buffer"
	"github.com/oryx-natnet/natnet-go/natnet"
)

func TestOpenUnicastReceivesFrame(t *testing.T) {
	defer natnet.SetVersion(3, 0)
	natnet.SetVersion(2, 0)

	var mu sync.Mutex
	var received *natnet.MoCapData

	ch, err := OpenUnicast("127.0.0.1", 0, func(frame *natnet.MoCapData) {
		mu.Lock()
		received = frame
		mu.Unlock()
	})
	require.NoError(t, err)
	defer ch.Close()

	w := buffer.NewWrite()
	w.WriteInt(42) // frame number
	w.WriteInt(0)  // marker set count
	w.WriteInt(0)  // unlabeled marker count
	w.WriteInt(0)  // rigid body count
	w.WriteULong(0)     // timecode
	w.WriteFloat(1.0)   // timestamp (float32 below version 2.7)
	w.WriteUShort(0)    // suffix param
	raw := packFrameEnvelope(w.Bytes())

	conn, err := net.DialUDP("udp4", nil, ch.conn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(raw)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return received != nil
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.EqualValues(t, 42, received.FrameNumber)
}

func packFrameEnvelope(payload []byte) []byte {
	w := buffer.NewWrite()
	w.WriteUShort(uint16(natnet.MessageFrameOfData))
	w.WriteUShort(0)
	start := w.Len()
	w.WriteBytes(payload, 0)
	w.SetShort(2, int16(w.Len()-start))
	return w.Bytes()
}
