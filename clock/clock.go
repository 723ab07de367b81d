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

// Package clock implements the synchronized clock engine of §4.6: an
// RTT-filtered mapping between the server's high-resolution tick
// counter and the client's wall-clock nanoseconds, built on periodic
// EchoRequest/EchoResponse probes over the command channel.
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/oryx-natnet/natnet-go/errs"
	"github.com/oryx-natnet/natnet-go/logger"
	"github.com/oryx-natnet/natnet-go/natnet"
)

// Prober is anything that can carry out an echo round trip — satisfied
// by *command.Channel. Kept as an interface here so clock has no
// import-time dependency on the command package.
type Prober interface {
	SendEcho(stamp uint64, timeout time.Duration) (*natnet.EchoResponse, error)
}

// NanoSecondGetter stamps the current wall-clock time in nanoseconds.
type NanoSecondGetter func() int64

const (
	warmUpProbes      = 10
	defaultPeriod     = 500 * time.Second
	echoTimeout       = 500 * time.Millisecond
	driftMinInterval  = int64(time.Second)
)

// Clock tracks the mapping between server ticks and client
// nanoseconds. The update rule below is kept literally from
// clock.py's SynchronizedClock.update: thresholds of 1e5 ns and
// 5e5*dt_c, and a slowly-converging beta += drift/2 skew estimate.
type Clock struct {
	mu sync.Mutex

	prober       Prober
	freq         uint64
	now          NanoSecondGetter
	estimateSkew bool
	period       time.Duration

	count  int
	t2c    int64
	t2s    int64
	minRTT int64
	beta   float64

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Clock for a server advertising the given tick
// frequency (Hz). now is the wall clock source supplied by the caller
// (the client package passes time.Now().UnixNano); New uses it as given
// and does not substitute a default for nil.
func New(prober Prober, freq uint64, now NanoSecondGetter, estimateSkew bool) *Clock {
	return &Clock{
		prober:       prober,
		freq:         freq,
		now:          now,
		estimateSkew: estimateSkew,
		period:       defaultPeriod,
		minRTT:       int64(time.Second),
	}
}

// Start runs ten warm-up probes back to back, then probes every
// period (default 500s) until Stop is called.
func (c *Clock) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.run(ctx)
}

// Stop cancels the background probe loop.
func (c *Clock) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Clock) run(ctx context.Context) {
	defer close(c.done)

	logger.Trace.Println(nil, "clock: starting initial sync")
	for i := 0; i < warmUpProbes; i++ {
		if ctx.Err() != nil {
			return
		}
		c.echo()
	}
	logger.Trace.Println(nil, "clock: initial sync complete")

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.echo()
		}
	}
}

func (c *Clock) echo() {
	t0c := c.now()
	resp, err := c.prober.SendEcho(uint64(t0c), echoTimeout)
	t2c := c.now()
	if err != nil || resp == nil {
		return
	}
	if resp.RequestStamp != uint64(t0c) {
		logger.Warn.Println(nil, "clock: echo response does not match request")
		return
	}
	c.update(t0c, c.ticksToNanoseconds(resp.ReceivedStamp), t2c)

	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

func (c *Clock) ticksToNanoseconds(ticks uint64) int64 {
	if c.freq == 0 {
		return 0
	}
	return int64(1e9 * float64(ticks) / float64(c.freq))
}

// update applies one echo round trip's measurement. t0c/t2c are client
// send/receive stamps (ns); t1s is the server's receive stamp
// converted to nanoseconds.
func (c *Clock) update(t0c, t1s, t2c int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rtt := t2c - t0c

	if c.t2s == 0 {
		c.t2s = t1s + int64((1+c.beta)*float64(rtt)/2)
		c.t2c = t2c
	} else {
		dtc := t2c - c.t2c
		threshold := c.minRTT + maxInt64(100000, int64(float64(dtc)*5e5))
		if rtt < threshold {
			prevT2s := c.clientToServerTimeLocked(t2c)
			c.t2s = t1s + int64((1+c.beta)*float64(rtt)/2)
			c.t2c = t2c

			if c.estimateSkew && dtc > driftMinInterval {
				delta := c.t2s - prevT2s
				drift := float64(delta) / float64(dtc)
				if c.beta == 0 {
					c.beta = drift
				} else {
					c.beta += drift / 2
				}
			}
		}
	}

	if rtt < c.minRTT {
		c.minRTT = rtt
	}
}

// ServerTicksToClientTime maps a server tick count to client wall-clock
// nanoseconds using the current offset/skew estimate.
func (c *Clock) ServerTicksToClientTime(ticks uint64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := c.ticksToNanoseconds(ticks)
	return int64(float64(c.t2c) + float64(ts-c.t2s)/(1+c.beta))
}

// ClientToServerTime maps a client wall-clock nanosecond timestamp to
// the equivalent server timeline nanoseconds.
func (c *Clock) ClientToServerTime(tc int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientToServerTimeLocked(tc)
}

func (c *Clock) clientToServerTimeLocked(tc int64) int64 {
	return int64(float64(c.t2s) + float64(tc-c.t2c)*(1+c.beta))
}

// Latencies reports (system latency, transmit latency) in nanoseconds
// for a frame, computed from its FrameSuffixData stamps (§4.6).
func (c *Clock) Latencies(suffix natnet.FrameSuffixData, tc int64) (systemLatency, transmitLatency int64, err error) {
	if suffix.TransmitTimestamp == 0 || suffix.CameraMidExposure == 0 {
		return 0, 0, errs.New(errs.State, "frame has no tick-based timestamps (stream version < 3)")
	}
	systemLatency = c.ticksToNanoseconds(suffix.TransmitTimestamp - suffix.CameraMidExposure)
	transmitLatency = tc - c.ServerTicksToClientTime(suffix.TransmitTimestamp)
	return systemLatency, transmitLatency, nil
}

// AcquisitionStamp maps a frame's camera mid-exposure tick to client
// wall-clock nanoseconds.
func (c *Clock) AcquisitionStamp(suffix natnet.FrameSuffixData) int64 {
	return c.ServerTicksToClientTime(suffix.CameraMidExposure)
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
