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

package natnet

import (
	"fmt"
	"strings"

	"github.com/oryx-natnet/natnet-go/buffer"
	"github.com/oryx-natnet/natnet-go/errs"
)

// ConnectRequest is the Connect message (§4.2): a 256-byte reserved
// name field followed by the client's NatNet version and the
// connection-options version it supports.
type ConnectRequest struct {
	NatNetVersion     VersionQuad
	ConnectionOptions VersionQuad
}

// NewConnectRequest builds a ConnectRequest advertising the compiled
// default version (3, 0, 0, 0), matching the wire default used before
// any server negotiation has happened.
func NewConnectRequest() *ConnectRequest {
	return &ConnectRequest{NatNetVersion: defaultVersionQuad, ConnectionOptions: defaultVersionQuad}
}

func (m *ConnectRequest) ID() MessageID { return MessageConnect }

func (m *ConnectRequest) packPayload(w *buffer.WriteBuffer) {
	w.WriteBytes(nil, 256)
	w.WriteBytes(m.NatNetVersion[:], 0)
	w.WriteBytes(m.ConnectionOptions[:], 0)
}

func unpackConnectRequest(b *buffer.Buffer) (*ConnectRequest, error) {
	if _, err := b.ReadBytes(256); err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read connect reserved field")
	}
	m := &ConnectRequest{}
	if err := readVersionQuad(b, &m.NatNetVersion); err != nil {
		return nil, err
	}
	if err := readVersionQuad(b, &m.ConnectionOptions); err != nil {
		return nil, err
	}
	return m, nil
}

// DiscoveryRequest is the Discovery broadcast message: structurally
// identical to Connect, sent to the broadcast address to locate servers.
type DiscoveryRequest struct {
	NatNetVersion     VersionQuad
	ConnectionOptions VersionQuad
}

// NewDiscoveryRequest builds a DiscoveryRequest advertising the
// compiled default version.
func NewDiscoveryRequest() *DiscoveryRequest {
	return &DiscoveryRequest{NatNetVersion: defaultVersionQuad, ConnectionOptions: defaultVersionQuad}
}

func (m *DiscoveryRequest) ID() MessageID { return MessageDiscovery }

func (m *DiscoveryRequest) packPayload(w *buffer.WriteBuffer) {
	w.WriteBytes(nil, 256)
	w.WriteBytes(m.NatNetVersion[:], 0)
	w.WriteBytes(m.ConnectionOptions[:], 0)
}

func unpackDiscoveryRequest(b *buffer.Buffer) (*DiscoveryRequest, error) {
	if _, err := b.ReadBytes(256); err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read discovery reserved field")
	}
	m := &DiscoveryRequest{}
	if err := readVersionQuad(b, &m.NatNetVersion); err != nil {
		return nil, err
	}
	if err := readVersionQuad(b, &m.ConnectionOptions); err != nil {
		return nil, err
	}
	return m, nil
}

func readVersionQuad(b *buffer.Buffer, v *VersionQuad) error {
	raw, err := b.ReadBytes(4)
	if err != nil {
		return errs.Wrap(errs.Malformed, err, "read version quad")
	}
	copy(v[:], raw)
	return nil
}

// Request is a Request message: an opaque, NUL-terminated ASCII
// command string built with the tokenized formats the server expects
// (see FrameRateCommand, SubscribeToDataCommand, etc.).
type Request struct {
	Command string
}

func (m *Request) ID() MessageID { return MessageRequest }

func (m *Request) packPayload(w *buffer.WriteBuffer) {
	w.WriteString(m.Command, 0)
}

func unpackRequest(b *buffer.Buffer) (*Request, error) {
	s, err := b.ReadString(0)
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read request command")
	}
	return &Request{Command: s}, nil
}

// Response carries the server's reply to a Request: opaque payload
// bytes whose interpretation depends on the originating command.
type Response struct {
	Payload []byte
}

func (m *Response) ID() MessageID { return MessageResponse }

func (m *Response) packPayload(w *buffer.WriteBuffer) {
	w.WriteBytes(m.Payload, 0)
}

func unpackResponse(b *buffer.Buffer, payloadSize int) (*Response, error) {
	payload, err := b.ReadBytes(0)
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read response payload")
	}
	return &Response{Payload: payload}, nil
}

// ModelDefRequest asks the server to send back its data descriptions.
type ModelDefRequest struct{}

func (m *ModelDefRequest) ID() MessageID                        { return MessageModelDefRequest }
func (m *ModelDefRequest) packPayload(w *buffer.WriteBuffer)     {}
func unpackModelDefRequest(b *buffer.Buffer) (*ModelDefRequest, error) {
	return &ModelDefRequest{}, nil
}

// RequestFrameOfData asks the server to send one frame immediately,
// used outside a subscription when polling is preferred.
type RequestFrameOfData struct{}

func (m *RequestFrameOfData) ID() MessageID                    { return MessageRequestFrameOfData }
func (m *RequestFrameOfData) packPayload(w *buffer.WriteBuffer) {}
func unpackRequestFrameOfData(b *buffer.Buffer) (*RequestFrameOfData, error) {
	return &RequestFrameOfData{}, nil
}

// Disconnect tells the server this client is leaving.
type Disconnect struct{}

func (m *Disconnect) ID() MessageID                    { return MessageDisconnect }
func (m *Disconnect) packPayload(w *buffer.WriteBuffer) {}
func unpackDisconnect(b *buffer.Buffer) (*Disconnect, error) {
	return &Disconnect{}, nil
}

// KeepAlive is sent periodically on the command channel to hold a
// unicast data subscription open.
type KeepAlive struct{}

func (m *KeepAlive) ID() MessageID                    { return MessageKeepAlive }
func (m *KeepAlive) packPayload(w *buffer.WriteBuffer) {}
func unpackKeepAlive(b *buffer.Buffer) (*KeepAlive, error) {
	return &KeepAlive{}, nil
}

// DisconnectByTimeout is sent by the server when it drops a client
// that stopped sending keep-alives.
type DisconnectByTimeout struct{}

func (m *DisconnectByTimeout) ID() MessageID                    { return MessageDisconnectByTimeout }
func (m *DisconnectByTimeout) packPayload(w *buffer.WriteBuffer) {}
func unpackDisconnectByTimeout(b *buffer.Buffer) (*DisconnectByTimeout, error) {
	return &DisconnectByTimeout{}, nil
}

// UnrecognizedRequest is the server's reply to a command string it
// could not parse.
type UnrecognizedRequest struct{}

func (m *UnrecognizedRequest) ID() MessageID                    { return MessageUnrecognizedRequest }
func (m *UnrecognizedRequest) packPayload(w *buffer.WriteBuffer) {}
func unpackUnrecognizedRequest(b *buffer.Buffer) (*UnrecognizedRequest, error) {
	return &UnrecognizedRequest{}, nil
}

// MessageString is a human-readable diagnostic string sent by the
// server, independent of any specific request.
type MessageString struct {
	Message string
}

func (m *MessageString) ID() MessageID { return MessageMessageString }

func (m *MessageString) packPayload(w *buffer.WriteBuffer) {
	w.WriteString(m.Message, 0)
}

func unpackMessageString(b *buffer.Buffer) (*MessageString, error) {
	s, err := b.ReadString(0)
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read message string")
	}
	return &MessageString{Message: s}, nil
}

// EchoRequest carries the client's local timestamp for round-trip
// latency and clock-offset measurement (§4.6).
type EchoRequest struct {
	Timestamp uint64
}

func (m *EchoRequest) ID() MessageID { return MessageEchoRequest }

func (m *EchoRequest) packPayload(w *buffer.WriteBuffer) {
	w.WriteULong(m.Timestamp)
}

func unpackEchoRequest(b *buffer.Buffer) (*EchoRequest, error) {
	ts, err := b.ReadULong()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read echo request timestamp")
	}
	return &EchoRequest{Timestamp: ts}, nil
}

// EchoResponse returns the original request timestamp alongside the
// server's receipt timestamp, letting the client compute RTT and
// offset in one round trip.
type EchoResponse struct {
	RequestStamp  uint64
	ReceivedStamp uint64
}

func (m *EchoResponse) ID() MessageID { return MessageEchoResponse }

func (m *EchoResponse) packPayload(w *buffer.WriteBuffer) {
	w.WriteULong(m.RequestStamp)
	w.WriteULong(m.ReceivedStamp)
}

func unpackEchoResponse(b *buffer.Buffer) (*EchoResponse, error) {
	req, err := b.ReadULong()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read echo response request stamp")
	}
	recv, err := b.ReadULong()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read echo response received stamp")
	}
	return &EchoResponse{RequestStamp: req, ReceivedStamp: recv}, nil
}

func tokenize(parts ...string) string {
	return strings.Join(parts, ",")
}

// FrameRateCommand builds the "FrameRate" SetProperty-style command string.
func FrameRateCommand(fps float64) string {
	return fmt.Sprintf("FrameRate,%g", fps)
}

// BitstreamCommand builds the "Bitstream" command that asks the server
// to switch the stream to a specific major.minor wire version.
func BitstreamCommand(major, minor int) string {
	return fmt.Sprintf("Bitstream,%d.%d", major, minor)
}

// SetPropertyCommand builds a SetProperty command, optionally scoped to
// a node name.
func SetPropertyCommand(node, name, value string) string {
	if node == "" {
		return tokenize("SetProperty", name, value)
	}
	return tokenize("SetProperty", node, name, value)
}

// GetPropertyCommand builds a GetProperty command, optionally scoped to
// a node name.
func GetPropertyCommand(node, name string) string {
	if node == "" {
		return tokenize("GetProperty", name)
	}
	return tokenize("GetProperty", node, name)
}

// EnableAssetCommand builds the command that re-enables streaming for
// a previously disabled asset name.
func EnableAssetCommand(name string) string {
	return tokenize("EnableAsset", name)
}

// DisableAssetCommand builds the command that stops streaming a named
// asset without removing its description.
func DisableAssetCommand(name string) string {
	return tokenize("DisableAsset", name)
}

// SubscribeToDataCommand builds a subscribe-by-name command scoped to
// kind (e.g. "RigidBody"). Passing "all" as name subscribes to every
// known asset of that kind.
func SubscribeToDataCommand(kind, name string) string {
	return tokenize("SubscribeToData", kind, name)
}

// SubscribeByIDCommand builds a subscribe-by-id command scoped to kind.
func SubscribeByIDCommand(kind string, id int32) string {
	return tokenize("SubscribeByID", kind, fmt.Sprintf("%d", id))
}

// UnsubscribeCommand builds the command that removes a named asset's
// subscription.
func UnsubscribeCommand(kind, name string) string {
	return tokenize("SubscribeToData,"+kind, name, "None")
}

// UnsubscribeByIDCommand builds the command that removes an asset's
// subscription by id.
func UnsubscribeByIDCommand(kind string, id int32) string {
	return tokenize("SubscribeByID,"+kind, fmt.Sprintf("%d", id), "None")
}
