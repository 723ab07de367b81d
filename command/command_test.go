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

package command

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oryx-natnet/natnet-go/natnet"
)

// mockServer is a minimal in-process UDP responder used to drive
// Channel's request/response correlation without a real NatNet server.
type mockServer struct {
	conn *net.UDPConn
	addr *net.UDPAddr
}

func startMockServer(t *testing.T, handle func(msg natnet.Message, from *net.UDPAddr, reply func(natnet.Message))) *mockServer {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	require.NoError(t, err)

	s := &mockServer{conn: conn, addr: conn.LocalAddr().(*net.UDPAddr)}

	go func() {
		buf := make([]byte, 65536)
		for {
			n, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			msg, err := natnet.Unpack(buf[:n])
			if err != nil {
				continue
			}
			handle(msg, from, func(reply natnet.Message) {
				conn.WriteToUDP(natnet.Pack(reply), from)
			})
		}
	}()

	t.Cleanup(func() { conn.Close() })
	return s
}

func TestChannelConnectReceivesServerInfo(t *testing.T) {
	srv := startMockServer(t, func(msg natnet.Message, from *net.UDPAddr, reply func(natnet.Message)) {
		if _, ok := msg.(*natnet.ConnectRequest); ok {
			reply(&natnet.ServerInfo{
				ApplicationName: "MockServer",
				ServerVersion:   natnet.VersionQuad{3, 1, 0, 0},
				StreamVersion:   natnet.VersionQuad{3, 1, 0, 0},
				ClockFreq:       1000000,
			})
		}
	})

	ch, err := Open("127.0.0.1", 0)
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.SetServer("127.0.0.1", srv.addr.Port))

	info, err := ch.Connect(2 * time.Second)
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, "MockServer", info.ApplicationName)
}

func TestChannelSendRequestRoundTrip(t *testing.T) {
	srv := startMockServer(t, func(msg natnet.Message, from *net.UDPAddr, reply func(natnet.Message)) {
		if req, ok := msg.(*natnet.Request); ok {
			require.Equal(t, "FrameRate", req.Command)
			reply(&natnet.Response{Payload: []byte{1, 2, 3, 4}})
		}
	})

	ch, err := Open("127.0.0.1", 0)
	require.NoError(t, err)
	defer ch.Close()
	require.NoError(t, ch.SetServer("127.0.0.1", srv.addr.Port))

	resp, err := ch.SendRequest("FrameRate", 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, resp.Payload)
}

func TestChannelRequestTimesOutWithoutResponse(t *testing.T) {
	srv := startMockServer(t, func(msg natnet.Message, from *net.UDPAddr, reply func(natnet.Message)) {})

	ch, err := Open("127.0.0.1", 0)
	require.NoError(t, err)
	defer ch.Close()
	require.NoError(t, ch.SetServer("127.0.0.1", srv.addr.Port))

	_, err = ch.SendRequest("FrameRate", 100*time.Millisecond)
	require.Error(t, err)
}

func TestChannelDiscoverCollectsServers(t *testing.T) {
	srv := startMockServer(t, func(msg natnet.Message, from *net.UDPAddr, reply func(natnet.Message)) {
		if _, ok := msg.(*natnet.DiscoveryRequest); ok {
			reply(&natnet.ServerInfo{
				ApplicationName: "Discovered",
				ServerVersion:   natnet.VersionQuad{3, 0, 0, 0},
				StreamVersion:   natnet.VersionQuad{3, 0, 0, 0},
			})
		}
	})

	ch, err := Open("127.0.0.1", 0)
	require.NoError(t, err)
	defer ch.Close()

	servers, err := ch.Discover("127.0.0.1", srv.addr.Port, 2*time.Second, 1)
	require.NoError(t, err)
	require.Len(t, servers, 1)
}

func TestChannelEchoRoundTrip(t *testing.T) {
	srv := startMockServer(t, func(msg natnet.Message, from *net.UDPAddr, reply func(natnet.Message)) {
		if req, ok := msg.(*natnet.EchoRequest); ok {
			reply(&natnet.EchoResponse{RequestStamp: req.Timestamp, ReceivedStamp: 42})
		}
	})

	ch, err := Open("127.0.0.1", 0)
	require.NoError(t, err)
	defer ch.Close()
	require.NoError(t, ch.SetServer("127.0.0.1", srv.addr.Port))

	resp, err := ch.SendEcho(99, 2*time.Second)
	require.NoError(t, err)
	require.EqualValues(t, 99, resp.RequestStamp)
	require.EqualValues(t, 42, resp.ReceivedStamp)
}
