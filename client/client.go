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

// Package client implements the NatNet client orchestrator of §4.5: it
// owns the command channel, the data channel, and (optionally) the
// synchronized clock, and exposes the high-level connect/subscribe/
// get-data API described by the reference implementation's AsyncClient.
package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/oryx-natnet/natnet-go/clock"
	"github.com/oryx-natnet/natnet-go/command"
	"github.com/oryx-natnet/natnet-go/data"
	"github.com/oryx-natnet/natnet-go/errs"
	"github.com/oryx-natnet/natnet-go/logger"
	"github.com/oryx-natnet/natnet-go/natnet"
)

const (
	defaultCommandPort = 1510
	defaultDataPort    = 1511
	defaultQueueSize   = 10
)

// DataCallback is invoked for every frame, fanned out alongside the
// internal bounded queue.
type DataCallback func(receivedAtNanos int64, frame *natnet.MoCapData)

// Option configures a Client at construction time.
type Option func(*Client)

// WithClientAddress sets the local interface address to bind to.
// Defaults to "0.0.0.0" (all interfaces).
func WithClientAddress(address string) Option {
	return func(c *Client) { c.clientAddress = address }
}

// WithCommandPort sets the port value handed to command.Open (default
// 1510). command.Open always binds an OS-assigned local port, so this
// value does not change which local port the command socket uses.
func WithCommandPort(port int) Option {
	return func(c *Client) { c.commandPort = port }
}

// WithServerCommandPort overrides the port used to reach the server's
// command channel (default 1510). Independent of WithCommandPort.
func WithServerCommandPort(port int) Option {
	return func(c *Client) { c.serverCommandPort = port }
}

// WithQueueSize sets the head-drop queue capacity for GetData. A
// negative size disables queuing entirely (only the data callback
// fires); 0 permits an unbounded queue; a positive size bounds the
// queue, dropping the oldest entry once full.
func WithQueueSize(size int) Option {
	return func(c *Client) { c.queueSize = size }
}

// WithNow overrides the wall-clock source used to stamp incoming
// frames and to drive the synchronized clock. Defaults to
// time.Now().UnixNano.
func WithNow(now func() int64) Option {
	return func(c *Client) { c.now = now }
}

// WithSync controls whether a synchronized clock is started on
// connect (default true).
func WithSync(sync bool) Option {
	return func(c *Client) { c.sync = sync }
}

// WithDoubleConnect controls whether a unicast session re-sends
// Connect after the data socket is bound, matching the reference
// client's "do I really need to call it twice?" behavior. Defaults to
// true: conservative, since some server builds only start streaming
// after the post-bind Connect.
func WithDoubleConnect(enabled bool) Option {
	return func(c *Client) { c.doubleConnect = enabled }
}

// WithDataCallback installs the fan-out callback invoked for every
// decoded frame, in addition to the internal queue.
func WithDataCallback(cb DataCallback) Option {
	return func(c *Client) { c.dataCallback = cb }
}

type frameItem struct {
	receivedAt int64
	frame      *natnet.MoCapData
}

// Client is a NatNet client: one command channel, one optional data
// channel, one optional synchronized clock, plus the cached server
// description state a caller needs to interpret frames.
type Client struct {
	clientAddress     string
	commandPort       int
	serverCommandPort int
	queueSize         int
	now               func() int64
	sync              bool
	doubleConnect     bool
	dataCallback      DataCallback

	mu             sync.RWMutex
	commandCh      *command.Channel
	dataCh         *data.Channel
	serverInfo     *natnet.ServerInfo
	description    *natnet.DataDescriptions
	rigidBodyNames map[int32]string
	syncClock      *clock.Clock

	queueMu sync.Mutex
	queue   []frameItem
	queueCh chan struct{}
}

// New constructs a Client. It does not open any sockets until Connect
// or Discover is called.
func New(opts ...Option) *Client {
	c := &Client{
		clientAddress:     "0.0.0.0",
		commandPort:       defaultCommandPort,
		serverCommandPort: defaultCommandPort,
		queueSize:         defaultQueueSize,
		now:               func() int64 { return time.Now().UnixNano() },
		sync:              true,
		doubleConnect:     true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.queueSize >= 0 {
		c.queueCh = make(chan struct{}, 1)
	}
	return c
}

// ServerInfo returns the currently connected server's info, or nil.
func (c *Client) ServerInfo() *natnet.ServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// Description returns the currently cached data descriptions, or nil.
func (c *Client) Description() *natnet.DataDescriptions {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.description
}

// RigidBodyNames returns a snapshot of id -> name for the last
// received description.
func (c *Client) RigidBodyNames() map[int32]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[int32]string, len(c.rigidBodyNames))
	for k, v := range c.rigidBodyNames {
		out[k] = v
	}
	return out
}

// Connected reports whether a server is currently connected.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo != nil
}

// UseMulticast reports whether the connected server streams over
// multicast.
func (c *Client) UseMulticast() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo != nil && c.serverInfo.ConnectionInfo != nil && c.serverInfo.ConnectionInfo.Multicast
}

// CanSubscribe reports whether the connected server build accepts
// subscription commands (major >= 4, unicast only).
func (c *Client) CanSubscribe() bool {
	ver := natnet.GetVersion()
	return ver.Major >= 4 && !c.UseMulticast()
}

// CanChangeBitstreamVersion reports whether a Bitstream command is
// accepted by the connected server (major >= 4, unicast only).
func (c *Client) CanChangeBitstreamVersion() bool {
	return c.CanSubscribe()
}

func (c *Client) init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.commandCh != nil {
		return nil
	}
	ch, err := command.Open(c.clientAddress, c.commandPort)
	if err != nil {
		return err
	}
	ch.OnData(func(frame *natnet.MoCapData) {
		c.onFrame(frame)
	})
	c.commandCh = ch
	return nil
}

// Discover broadcasts a discovery request and returns every server
// that answers within timeout, stopping early once number servers have
// answered (number <= 0 means no limit).
func (c *Client) Discover(broadcastAddress string, timeout time.Duration, number int) (map[string]*natnet.ServerInfo, error) {
	if err := c.init(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	ch := c.commandCh
	c.mu.RUnlock()
	return ch.Discover(broadcastAddress, c.serverCommandPort, timeout, number)
}

// Connect connects to a server. If discoveryAddress is non-empty it is
// used to locate a server via broadcast first; otherwise serverAddress
// is dialed directly. Once connected, it fetches the data description
// and (unless disabled) starts the synchronized clock and the data
// channel.
func (c *Client) Connect(discoveryAddress, serverAddress string, timeout time.Duration, startListening bool) (bool, error) {
	if c.Connected() {
		return false, errs.New(errs.State, "already connected; unconnect before connecting to a new server")
	}
	if err := c.init(); err != nil {
		return false, err
	}

	c.mu.RLock()
	ch := c.commandCh
	c.mu.RUnlock()

	var info *natnet.ServerInfo
	if discoveryAddress != "" {
		servers, err := ch.Discover(discoveryAddress, c.serverCommandPort, timeout, 1)
		if err != nil {
			return false, err
		}
		for addr, si := range servers {
			info = si
			host, _, err := splitHostPort(addr)
			if err == nil {
				serverAddress = host
			}
			break
		}
		if info == nil {
			logger.Warn.Println(nil, "client: discovery found no server")
			return false, nil
		}
		if err := ch.SetServer(serverAddress, c.serverCommandPort); err != nil {
			return false, err
		}
	} else {
		if err := ch.SetServer(serverAddress, c.serverCommandPort); err != nil {
			return false, err
		}
		var err error
		info, err = ch.Connect(timeout)
		if err != nil || info == nil {
			logger.Warn.Println(nil, "client: connect failed:", err)
			return false, nil
		}
	}

	c.setServerInfo(info)
	logger.Trace.Println(nil, "client: connected to", serverAddress)

	desc, err := ch.GetDescription(timeout)
	if err != nil || desc == nil {
		return false, fmt.Errorf("fetch data description: %w", err)
	}
	c.setDescription(desc)

	if c.sync {
		clk := clock.New(ch, info.ClockFreq, c.now, false)
		clk.Start()
		c.mu.Lock()
		c.syncClock = clk
		c.mu.Unlock()
	}

	if startListening {
		return c.startListeningForData(timeout)
	}
	return true, nil
}

func (c *Client) startListeningForData(timeout time.Duration) (bool, error) {
	c.mu.RLock()
	info := c.serverInfo
	ch := c.commandCh
	c.mu.RUnlock()
	if info == nil || ch == nil {
		return false, errs.New(errs.State, "cannot start listening for data before connecting")
	}

	dataPort := defaultDataPort
	multicast := false
	multicastAddress := ""
	if info.ConnectionInfo != nil {
		dataPort = int(info.ConnectionInfo.DataPort)
		multicast = info.ConnectionInfo.Multicast
		if info.ConnectionInfo.MulticastAddress != nil {
			multicastAddress = info.ConnectionInfo.MulticastAddress.String()
		}
	}

	var dch *data.Channel
	var err error
	if multicast {
		dch, err = data.OpenMulticast(c.clientAddress, multicastAddress, dataPort, c.onFrame)
	} else {
		dch, err = data.OpenUnicast(c.clientAddress, dataPort, c.onFrame)
		if err == nil {
			if c.doubleConnect {
				if _, connErr := ch.Connect(timeout); connErr != nil {
					logger.Warn.Println(nil, "client: post-bind reconnect failed:", connErr)
				}
			}
			ch.InitKeepAlive(0)
		}
	}
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	c.dataCh = dch
	c.mu.Unlock()
	return true, nil
}

func (c *Client) setServerInfo(info *natnet.ServerInfo) {
	c.mu.Lock()
	c.serverInfo = info
	c.mu.Unlock()
	if info != nil {
		natnet.SetVersion(info.StreamVersion.Major(), info.StreamVersion.Minor())
	}
}

func (c *Client) setDescription(desc *natnet.DataDescriptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.description = desc
	names := make(map[int32]string)
	if desc != nil {
		for _, d := range desc.Descriptions {
			if d.RigidBody != nil {
				names[d.RigidBody.ID] = d.RigidBody.Name
			}
		}
	}
	c.rigidBodyNames = names
}

func (c *Client) onFrame(frame *natnet.MoCapData) {
	ts := c.now()
	item := frameItem{receivedAt: ts, frame: frame}

	if c.queueSize >= 0 {
		c.queueMu.Lock()
		if c.queueSize > 0 && len(c.queue) >= c.queueSize {
			c.queue = c.queue[1:]
		}
		c.queue = append(c.queue, item)
		c.queueMu.Unlock()
		select {
		case c.queueCh <- struct{}{}:
		default:
		}
	}

	c.mu.RLock()
	cb := c.dataCallback
	c.mu.RUnlock()
	if cb != nil {
		cb(ts, frame)
	}
}

// GetData returns the next queued frame, waiting up to timeout (0
// means block forever). Returns false immediately if the queue was
// disabled via WithQueueSize(<0). If last is true and the queue is
// non-empty, every older entry is discarded and the newest is returned
// immediately.
func (c *Client) GetData(timeout time.Duration, last bool) (int64, *natnet.MoCapData, bool) {
	if c.queueSize < 0 {
		return 0, nil, false
	}

	deadline := time.Now().Add(timeout)
	for {
		c.queueMu.Lock()
		if len(c.queue) > 0 {
			var item frameItem
			if last {
				item = c.queue[len(c.queue)-1]
				c.queue = nil
			} else {
				item = c.queue[0]
				c.queue = c.queue[1:]
			}
			c.queueMu.Unlock()
			return item.receivedAt, item.frame, true
		}
		c.queueMu.Unlock()

		if timeout <= 0 {
			<-c.queueCh
			continue
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, nil, false
		}
		select {
		case <-c.queueCh:
		case <-time.After(remaining):
			return 0, nil, false
		}
	}
}

// Unconnect tears down the data channel and clock, leaving the command
// channel open so Connect can be retried.
func (c *Client) Unconnect() {
	c.mu.Lock()
	dch := c.dataCh
	ch := c.commandCh
	clk := c.syncClock
	c.dataCh = nil
	c.syncClock = nil
	c.serverInfo = nil
	c.description = nil
	c.rigidBodyNames = nil
	c.mu.Unlock()

	if ch != nil {
		ch.StopKeepAlive()
	}
	if clk != nil {
		clk.Stop()
	}
	if dch != nil {
		dch.Close()
	}
}

// Close unconnects (if needed) and closes the command channel.
func (c *Client) Close() error {
	c.Unconnect()
	c.mu.Lock()
	ch := c.commandCh
	c.commandCh = nil
	c.mu.Unlock()
	if ch == nil {
		return nil
	}
	return ch.Close()
}

func splitHostPort(addr string) (string, string, error) {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i], addr[i+1:], nil
		}
	}
	return "", "", errs.New(errs.Malformed, "address has no port: "+addr)
}
