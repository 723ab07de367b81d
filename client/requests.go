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

package client

import (
	"encoding/binary"
	"math"
	"strconv"
	"time"

	"github.com/oryx-natnet/natnet-go/command"
	"github.com/oryx-natnet/natnet-go/errs"
	"github.com/oryx-natnet/natnet-go/natnet"
)

func (c *Client) commandChannel() (*command.Channel, error) {
	c.mu.RLock()
	ch := c.commandCh
	c.mu.RUnlock()
	if ch == nil {
		return nil, errs.New(errs.State, "not connected")
	}
	return ch, nil
}

// SetProperty sends a SetProperty command, optionally scoped to node,
// and reports whether the server acknowledged it.
func (c *Client) SetProperty(node, name, value string, timeout time.Duration) (bool, error) {
	ch, err := c.commandChannel()
	if err != nil {
		return false, err
	}
	resp, err := ch.SendRequest(natnet.SetPropertyCommand(node, name, value), timeout)
	if err != nil {
		return false, err
	}
	return resp != nil, nil
}

// GetProperty sends a GetProperty command and returns the raw response
// payload.
func (c *Client) GetProperty(node, name string, timeout time.Duration) ([]byte, error) {
	ch, err := c.commandChannel()
	if err != nil {
		return nil, err
	}
	resp, err := ch.SendRequest(natnet.GetPropertyCommand(node, name), timeout)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errs.New(errs.Timeout, "get property timed out")
	}
	return resp.Payload, nil
}

// SetFramerate asks the server to change its capture/stream frame rate.
func (c *Client) SetFramerate(fps float64, timeout time.Duration) (bool, error) {
	return c.SetProperty("", "Master Rate", strconv.FormatFloat(fps, 'g', -1, 64), timeout)
}

// GetFramerate asks the server for its current frame rate.
func (c *Client) GetFramerate(timeout time.Duration) (float64, error) {
	ch, err := c.commandChannel()
	if err != nil {
		return 0, err
	}
	resp, err := ch.SendRequest("FrameRate", timeout)
	if err != nil {
		return 0, err
	}
	if resp == nil || len(resp.Payload) < 4 {
		return 0, errs.New(errs.Protocol, "malformed frame rate response")
	}
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(resp.Payload))), nil
}

// EnableAsset re-enables streaming for a previously disabled asset.
func (c *Client) EnableAsset(name string, timeout time.Duration) (bool, error) {
	ch, err := c.commandChannel()
	if err != nil {
		return false, err
	}
	resp, err := ch.SendRequest(natnet.EnableAssetCommand(name), timeout)
	if err != nil {
		return false, err
	}
	return resp != nil, nil
}

// DisableAsset stops streaming for a named asset without dropping its
// description.
func (c *Client) DisableAsset(name string, timeout time.Duration) (bool, error) {
	ch, err := c.commandChannel()
	if err != nil {
		return false, err
	}
	resp, err := ch.SendRequest(natnet.DisableAssetCommand(name), timeout)
	if err != nil {
		return false, err
	}
	return resp != nil, nil
}

// rigidBodyKind is the only asset kind the client currently subscribes
// to by name or id (§4.2's SubscribeToData/SubscribeByID examples are
// all RigidBody).
const rigidBodyKind = "RigidBody"

// Subscribe subscribes to a named rigid body (requires NatNet >= 4,
// unicast only — see CanSubscribe).
func (c *Client) Subscribe(name string, timeout time.Duration) (bool, error) {
	if !c.CanSubscribe() {
		return false, errs.New(errs.State, "server does not support subscriptions")
	}
	ch, err := c.commandChannel()
	if err != nil {
		return false, err
	}
	resp, err := ch.SendRequest(natnet.SubscribeToDataCommand(rigidBodyKind, name), timeout)
	if err != nil {
		return false, err
	}
	return resp != nil, nil
}

// SubscribeByID subscribes to a rigid body by its numeric id (requires
// NatNet >= 4, unicast only — see CanSubscribe).
func (c *Client) SubscribeByID(id int32, timeout time.Duration) (bool, error) {
	if !c.CanSubscribe() {
		return false, errs.New(errs.State, "server does not support subscriptions")
	}
	ch, err := c.commandChannel()
	if err != nil {
		return false, err
	}
	resp, err := ch.SendRequest(natnet.SubscribeByIDCommand(rigidBodyKind, id), timeout)
	if err != nil {
		return false, err
	}
	return resp != nil, nil
}

// SubscribeAll subscribes to every known rigid body.
func (c *Client) SubscribeAll(timeout time.Duration) (bool, error) {
	return c.Subscribe("all", timeout)
}

// Unsubscribe removes a named rigid body's subscription.
func (c *Client) Unsubscribe(name string, timeout time.Duration) (bool, error) {
	if !c.CanSubscribe() {
		return false, errs.New(errs.State, "server does not support subscriptions")
	}
	ch, err := c.commandChannel()
	if err != nil {
		return false, err
	}
	resp, err := ch.SendRequest(natnet.UnsubscribeCommand(rigidBodyKind, name), timeout)
	if err != nil {
		return false, err
	}
	return resp != nil, nil
}

// UnsubscribeByID removes a rigid body's subscription by its numeric id.
func (c *Client) UnsubscribeByID(id int32, timeout time.Duration) (bool, error) {
	if !c.CanSubscribe() {
		return false, errs.New(errs.State, "server does not support subscriptions")
	}
	ch, err := c.commandChannel()
	if err != nil {
		return false, err
	}
	resp, err := ch.SendRequest(natnet.UnsubscribeByIDCommand(rigidBodyKind, id), timeout)
	if err != nil {
		return false, err
	}
	return resp != nil, nil
}

// ClearSubscriptions unsubscribes from every asset.
func (c *Client) ClearSubscriptions(timeout time.Duration) (bool, error) {
	if !c.CanSubscribe() {
		return false, errs.New(errs.State, "server does not support subscriptions")
	}
	ch, err := c.commandChannel()
	if err != nil {
		return false, err
	}
	if _, err := ch.SendRequest("SubscribeToData", timeout); err != nil {
		return false, err
	}
	resp, err := ch.SendRequest("SubscribeByID", timeout)
	if err != nil {
		return false, err
	}
	return resp != nil, nil
}

// SetVersion asks the server to switch the stream to major.minor
// (requires NatNet >= 4, unicast only) and, on success, updates the
// process-wide negotiated version.
func (c *Client) SetVersion(major, minor int, timeout time.Duration) (bool, error) {
	if !c.CanChangeBitstreamVersion() {
		return false, errs.New(errs.State, "server does not support changing bitstream version")
	}
	cur := natnet.GetVersion()
	if cur.Major == major && cur.Minor == minor {
		return true, nil
	}
	ch, err := c.commandChannel()
	if err != nil {
		return false, err
	}
	resp, err := ch.SendRequest(natnet.BitstreamCommand(major, minor), timeout)
	if err != nil {
		return false, err
	}
	if resp == nil {
		return false, nil
	}
	natnet.SetVersion(major, minor)
	return true, nil
}
