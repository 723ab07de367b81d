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

// Package command implements the NatNet command channel (§4.3): a
// single UDP socket used for Connect, discovery, property get/set,
// echo probes, and the unicast keep-alive loop.
package command

import (
	"context"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/google/uuid"

	"github.com/oryx-natnet/natnet-go/errs"
	"github.com/oryx-natnet/natnet-go/logger"
	"github.com/oryx-natnet/natnet-go/natnet"
)

const defaultKeepAliveInterval = 5 * time.Second

// DataCallback receives MoCapData frames that arrive on the command
// channel itself (some servers echo frames there as well as on the
// data channel).
type DataCallback func(*natnet.MoCapData)

// DiscoveryCallback is invoked once per distinct server address that
// replies to a Discovery broadcast.
type DiscoveryCallback func(addr *net.UDPAddr, info *natnet.ServerInfo)

type pendingResponse struct {
	token uuid.UUID
	match func(natnet.Message) bool
	ch    chan natnet.Message
}

// Channel is the command-channel socket: it owns one pending typed
// await slot (mirroring the reference client's single-in-flight
// request model) plus an optional discovery auxiliary callback that
// runs alongside it.
type Channel struct {
	mu      sync.Mutex
	conn    *net.UDPConn
	server  *net.UDPAddr
	pending *pendingResponse
	onData  DataCallback
	onDisc  DiscoveryCallback

	keepAliveMu     sync.Mutex
	keepAliveCancel func()
	keepAliveOn     bool

	closed chan struct{}
	wg     sync.WaitGroup
}

// Open binds a command-channel socket on clientAddress with an
// OS-assigned port (the port argument is not used) and SO_REUSEADDR and
// SO_BROADCAST set (discovery requires broadcast), and starts the
// background read loop.
func Open(clientAddress string, port int) (*Channel, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var ctrlErr error
			if err := c.Control(func(fd uintptr) {
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
					ctrlErr = err
					return
				}
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1); err != nil {
					ctrlErr = err
				}
			}); err != nil {
				return err
			}
			return ctrlErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", net.JoinHostPort(clientAddress, "0"))
	if err != nil {
		return nil, errs.Wrap(errs.Transport, err, "open command socket")
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, errs.New(errs.Transport, "command socket is not a UDP connection")
	}

	ch := &Channel{
		conn:   conn,
		closed: make(chan struct{}),
	}
	ch.wg.Add(1)
	go ch.readLoop()
	return ch, nil
}

// SetServer points future sends at addr:port.
func (c *Channel) SetServer(address string, port int) error {
	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(address, intToString(port)))
	if err != nil {
		return errs.Wrap(errs.Transport, err, "resolve command server address")
	}
	c.mu.Lock()
	c.server = addr
	c.mu.Unlock()
	return nil
}

// Server returns the address currently used for sends.
func (c *Channel) Server() *net.UDPAddr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server
}

// OnData installs the callback invoked for MoCapData arriving on this
// channel.
func (c *Channel) OnData(cb DataCallback) {
	c.mu.Lock()
	c.onData = cb
	c.mu.Unlock()
}

func intToString(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (c *Channel) readLoop() {
	defer c.wg.Done()
	buf := make([]byte, 65536)
	for {
		n, addr, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-c.closed:
				return
			default:
			}
			logger.Warn.Println(nil, "command: read error:", err)
			return
		}

		msg, err := natnet.Unpack(buf[:n])
		if err != nil {
			logger.Warn.Println(nil, "command: malformed datagram from", addr, ":", err)
			continue
		}

		c.dispatch(msg, addr)
	}
}

func (c *Channel) dispatch(msg natnet.Message, addr *net.UDPAddr) {
	c.mu.Lock()
	onDisc := c.onDisc
	onData := c.onData
	pending := c.pending
	if pending != nil && pending.match(msg) {
		c.pending = nil
	} else {
		pending = nil
	}
	c.mu.Unlock()

	if si, ok := msg.(*natnet.ServerInfo); ok && onDisc != nil {
		onDisc(addr, si)
	}
	if pending != nil {
		pending.ch <- msg
	}
	if mc, ok := msg.(*natnet.MoCapData); ok && onData != nil {
		onData(mc)
	}
}

// send writes msg to the current server address.
func (c *Channel) send(msg natnet.Message) error {
	c.mu.Lock()
	server := c.server
	c.mu.Unlock()
	if server == nil {
		return errs.New(errs.State, "command channel has no server address set")
	}
	_, err := c.conn.WriteToUDP(natnet.Pack(msg), server)
	if err != nil {
		return errs.Wrap(errs.Transport, err, "send command message")
	}
	return nil
}

// sendTo writes msg to an explicit address, bypassing the configured server.
func (c *Channel) sendTo(msg natnet.Message, addr *net.UDPAddr) error {
	_, err := c.conn.WriteToUDP(natnet.Pack(msg), addr)
	if err != nil {
		return errs.Wrap(errs.Transport, err, "send command message")
	}
	return nil
}

// sendTyped sends msg and waits up to timeout for a reply matching
// predicate match, analogous to the reference client's
// `send(msg, response_type, timeout)`.
func sendTyped[T natnet.Message](c *Channel, msg natnet.Message, timeout time.Duration) (T, error) {
	var zero T
	respCh := make(chan natnet.Message, 1)
	token := uuid.New()

	c.mu.Lock()
	c.pending = &pendingResponse{
		token: token,
		match: func(m natnet.Message) bool {
			_, ok := m.(T)
			return ok
		},
		ch: respCh,
	}
	c.mu.Unlock()

	logger.Trace.Println(nil, "command:", token, "send", msg.ID())

	if err := c.send(msg); err != nil {
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
		return zero, err
	}

	if timeout <= 0 {
		m := <-respCh
		t, _ := m.(T)
		logger.Trace.Println(nil, "command:", token, "recv", m.ID())
		return t, nil
	}

	select {
	case m := <-respCh:
		t, _ := m.(T)
		logger.Trace.Println(nil, "command:", token, "recv", m.ID())
		return t, nil
	case <-time.After(timeout):
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
		return zero, errs.New(errs.Timeout, "command request timed out: "+token.String())
	}
}

// Connect sends a Connect request and waits for ServerInfo.
func (c *Channel) Connect(timeout time.Duration) (*natnet.ServerInfo, error) {
	return sendTyped[*natnet.ServerInfo](c, natnet.NewConnectRequest(), timeout)
}

// GetDescription sends a ModelDefRequest and waits for DataDescriptions.
func (c *Channel) GetDescription(timeout time.Duration) (*natnet.DataDescriptions, error) {
	return sendTyped[*natnet.DataDescriptions](c, &natnet.ModelDefRequest{}, timeout)
}

// SendRequest sends an opaque command string and waits for a Response.
func (c *Channel) SendRequest(command string, timeout time.Duration) (*natnet.Response, error) {
	return sendTyped[*natnet.Response](c, &natnet.Request{Command: command}, timeout)
}

// SendEcho sends an EchoRequest carrying stamp and waits for the
// matching EchoResponse (§4.6).
func (c *Channel) SendEcho(stamp uint64, timeout time.Duration) (*natnet.EchoResponse, error) {
	return sendTyped[*natnet.EchoResponse](c, &natnet.EchoRequest{Timestamp: stamp}, timeout)
}

// Discover broadcasts a Discovery request to broadcastAddress:port and
// collects ServerInfo replies for up to timeout, stopping early once
// number distinct servers have answered (number <= 0 means unbounded).
func (c *Channel) Discover(broadcastAddress string, port int, timeout time.Duration, number int) (map[string]*natnet.ServerInfo, error) {
	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(broadcastAddress, intToString(port)))
	if err != nil {
		return nil, errs.Wrap(errs.Transport, err, "resolve discovery broadcast address")
	}

	found := make(map[string]*natnet.ServerInfo)
	var foundMu sync.Mutex
	done := make(chan struct{})
	var once sync.Once

	c.mu.Lock()
	c.onDisc = func(from *net.UDPAddr, info *natnet.ServerInfo) {
		foundMu.Lock()
		key := from.String()
		_, seen := found[key]
		found[key] = info
		n := len(found)
		foundMu.Unlock()
		if !seen {
			logger.Trace.Println(nil, "command: discovered server at", key)
		}
		if number > 0 && n >= number {
			once.Do(func() { close(done) })
		}
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.onDisc = nil
		c.mu.Unlock()
	}()

	if err := c.sendTo(natnet.NewDiscoveryRequest(), addr); err != nil {
		return nil, err
	}

	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warn.Println(nil, "command: discovery timed out")
	}

	foundMu.Lock()
	defer foundMu.Unlock()
	out := make(map[string]*natnet.ServerInfo, len(found))
	for k, v := range found {
		out[k] = v
	}
	return out, nil
}

// InitKeepAlive starts a background loop sending KeepAlive every
// interval (default 5s, unicast sessions only, per §4.3/§6).
func (c *Channel) InitKeepAlive(interval time.Duration) {
	if interval <= 0 {
		interval = defaultKeepAliveInterval
	}

	c.keepAliveMu.Lock()
	if c.keepAliveOn {
		c.keepAliveMu.Unlock()
		return
	}
	stop := make(chan struct{})
	c.keepAliveCancel = func() { close(stop) }
	c.keepAliveOn = true
	c.keepAliveMu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := c.send(&natnet.KeepAlive{}); err != nil {
					logger.Warn.Println(nil, "command: keep-alive send failed:", err)
				}
			}
		}
	}()
}

// StopKeepAlive cancels the keep-alive loop started by InitKeepAlive.
func (c *Channel) StopKeepAlive() {
	c.keepAliveMu.Lock()
	defer c.keepAliveMu.Unlock()
	if !c.keepAliveOn {
		return
	}
	c.keepAliveCancel()
	c.keepAliveOn = false
}

// Close stops the keep-alive loop, if any, and closes the socket.
func (c *Channel) Close() error {
	c.StopKeepAlive()
	close(c.closed)
	err := c.conn.Close()
	c.wg.Wait()
	return err
}
