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

// Package data implements the NatNet data channel (§4.4): the
// inbound-only UDP socket that streams FrameOfData packets, either
// joined to a server-advertised multicast group or bound point-to-point
// for unicast delivery.
package data

import (
	"context"
	"net"
	"sync"
	"syscall"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"github.com/oryx-natnet/natnet-go/errs"
	"github.com/oryx-natnet/natnet-go/logger"
	"github.com/oryx-natnet/natnet-go/natnet"
)

// FrameCallback receives each decoded FrameOfData packet.
type FrameCallback func(*natnet.MoCapData)

// Channel is the data-channel socket.
type Channel struct {
	conn      *net.UDPConn
	multicast bool

	closed chan struct{}
	wg     sync.WaitGroup
}

// OpenMulticast joins multicastAddress on port, binding to the
// wildcard address and enabling SO_REUSEADDR so multiple local clients
// can share the group (§4.4). Join failure is fatal for the data
// channel only — it does not affect the command channel.
func OpenMulticast(clientAddress, multicastAddress string, port int, cb FrameCallback) (*Channel, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var ctrlErr error
			if err := c.Control(func(fd uintptr) {
				ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			}); err != nil {
				return err
			}
			return ctrlErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", net.JoinHostPort("", intToString(port)))
	if err != nil {
		return nil, errs.Wrap(errs.Transport, err, "open data socket")
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, errs.New(errs.Transport, "data socket is not a UDP connection")
	}

	group := net.ParseIP(multicastAddress)
	if group == nil {
		conn.Close()
		return nil, errs.New(errs.Transport, "invalid multicast address "+multicastAddress)
	}

	pconn := ipv4.NewPacketConn(conn)
	ifi, joinErr := multicastInterfaceFor(clientAddress)
	if joinErr == nil {
		joinErr = pconn.JoinGroup(ifi, &net.UDPAddr{IP: group})
	}
	if joinErr != nil {
		conn.Close()
		return nil, errs.Wrap(errs.Transport, joinErr, "join multicast group "+multicastAddress)
	}

	ch := &Channel{conn: conn, multicast: true, closed: make(chan struct{})}
	ch.wg.Add(1)
	go ch.readLoop(cb)
	return ch, nil
}

// OpenUnicast binds a point-to-point data socket on clientAddress:port.
// The caller is responsible for re-issuing Connect and enabling the
// command channel's keep-alive loop once this returns (§4.4, §6).
func OpenUnicast(clientAddress string, port int, cb FrameCallback) (*Channel, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP(clientAddress), Port: port})
	if err != nil {
		return nil, errs.Wrap(errs.Transport, err, "open unicast data socket")
	}
	ch := &Channel{conn: conn, multicast: false, closed: make(chan struct{})}
	ch.wg.Add(1)
	go ch.readLoop(cb)
	return ch, nil
}

func multicastInterfaceFor(clientAddress string) (*net.Interface, error) {
	if clientAddress == "" || clientAddress == "0.0.0.0" {
		ifaces, err := net.Interfaces()
		if err != nil {
			return nil, errs.Wrap(errs.Transport, err, "list network interfaces")
		}
		for _, ifi := range ifaces {
			if ifi.Flags&net.FlagUp != 0 && ifi.Flags&net.FlagMulticast != 0 {
				return &ifi, nil
			}
		}
		return nil, errs.New(errs.Transport, "no multicast-capable interface found")
	}

	target := net.ParseIP(clientAddress)
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, errs.Wrap(errs.Transport, err, "list network interfaces")
	}
	for _, ifi := range ifaces {
		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipNet, ok := a.(*net.IPNet); ok && ipNet.IP.Equal(target) {
				return &ifi, nil
			}
		}
	}
	return nil, errs.New(errs.Transport, "no interface with address "+clientAddress)
}

func (ch *Channel) readLoop(cb FrameCallback) {
	defer ch.wg.Done()
	buf := make([]byte, 65536)
	for {
		n, _, err := ch.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ch.closed:
				return
			default:
			}
			logger.Warn.Println(nil, "data: read error:", err)
			return
		}

		msg, err := natnet.Unpack(buf[:n])
		if err != nil {
			logger.Warn.Println(nil, "data: malformed datagram:", err)
			continue
		}

		if mc, ok := msg.(*natnet.MoCapData); ok && cb != nil {
			cb(mc)
		}
	}
}

// Close stops the read loop and closes the socket.
func (ch *Channel) Close() error {
	close(ch.closed)
	err := ch.conn.Close()
	ch.wg.Wait()
	return err
}

func intToString(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
