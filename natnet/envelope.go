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

	"github.com/oryx-natnet/natnet-go/buffer"
	"github.com/oryx-natnet/natnet-go/errs"
	"github.com/oryx-natnet/natnet-go/logger"
)

// MessageID is the fixed u16 discriminator in the envelope header (§4.2).
type MessageID uint16

const (
	MessageConnect             MessageID = 0
	MessageServerInfo          MessageID = 1
	MessageRequest             MessageID = 2
	MessageResponse            MessageID = 3
	MessageModelDefRequest     MessageID = 4
	MessageModelDef            MessageID = 5
	MessageRequestFrameOfData  MessageID = 6
	MessageFrameOfData         MessageID = 7
	MessageMessageString       MessageID = 8
	MessageDisconnect          MessageID = 9
	MessageKeepAlive           MessageID = 10
	MessageDisconnectByTimeout MessageID = 11
	MessageEchoRequest         MessageID = 12
	MessageEchoResponse        MessageID = 13
	MessageDiscovery           MessageID = 14
	MessageUnrecognizedRequest MessageID = 100
)

func (m MessageID) String() string {
	switch m {
	case MessageConnect:
		return "Connect"
	case MessageServerInfo:
		return "ServerInfo"
	case MessageRequest:
		return "Request"
	case MessageResponse:
		return "Response"
	case MessageModelDefRequest:
		return "ModelDefRequest"
	case MessageModelDef:
		return "ModelDef"
	case MessageRequestFrameOfData:
		return "RequestFrameOfData"
	case MessageFrameOfData:
		return "FrameOfData"
	case MessageMessageString:
		return "MessageString"
	case MessageDisconnect:
		return "Disconnect"
	case MessageKeepAlive:
		return "KeepAlive"
	case MessageDisconnectByTimeout:
		return "DisconnectByTimeout"
	case MessageEchoRequest:
		return "EchoRequest"
	case MessageEchoResponse:
		return "EchoResponse"
	case MessageDiscovery:
		return "Discovery"
	case MessageUnrecognizedRequest:
		return "UnrecognizedRequest"
	default:
		return fmt.Sprintf("MessageID(%d)", int(m))
	}
}

// Message is any NatNet wire message: it knows its own id and can
// serialize its payload (everything after the 4-byte envelope header).
type Message interface {
	ID() MessageID
	packPayload(w *buffer.WriteBuffer)
}

// Pack serializes msg as a full envelope: { message_id, payload_size, payload },
// with payload_size backpatched to len(payload) after encoding.
func Pack(msg Message) []byte {
	w := buffer.NewWrite()
	w.WriteUShort(uint16(msg.ID()))
	w.WriteUShort(0)
	start := w.Len()
	msg.packPayload(w)
	w.SetShort(2, int16(w.Len()-start))
	return w.Bytes()
}

// Unpack reads the envelope header from data, dispatches to the
// version-dependent decoder selected by the message-id table, and
// returns the typed message. It uses and (for ServerInfo) updates the
// process-wide negotiated version (§3, §4.2). Trailing bytes left
// after a message decodes are logged and discarded, never fatal.
func Unpack(data []byte) (Message, error) {
	return UnpackWithVersion(data, GetVersion())
}

// UnpackWithVersion is Unpack with an explicit version instead of the
// process-wide default — the form tests use to exercise every version
// branch independently, per the Design Notes' recommendation to pass a
// version context through the codec rather than rely solely on a global.
func UnpackWithVersion(data []byte, ver StreamVersion) (Message, error) {
	b := buffer.New(data)

	rawID, err := b.ReadUShort()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read message id")
	}
	id := MessageID(rawID)

	payloadSize, err := b.ReadUShort()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read payload size")
	}

	payload, err := b.ReadBytes(int(payloadSize))
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read payload")
	}

	pb := buffer.New(payload)
	msg, err := decode(id, pb, ver, int(payloadSize))
	if err != nil {
		return nil, err
	}

	if pb.Remaining() > 0 {
		logger.Warn.Println(nil, "natnet: discarding", pb.Remaining(), "trailing bytes in", id)
	}

	if si, ok := msg.(*ServerInfo); ok {
		SetVersion(si.StreamVersion.Major(), si.StreamVersion.Minor())
	}

	return msg, nil
}

func decode(id MessageID, b *buffer.Buffer, ver StreamVersion, payloadSize int) (Message, error) {
	switch id {
	case MessageConnect:
		return unpackConnectRequest(b)
	case MessageServerInfo:
		return unpackServerInfo(b, ver)
	case MessageRequest:
		return unpackRequest(b)
	case MessageResponse:
		return unpackResponse(b, payloadSize)
	case MessageModelDefRequest:
		return unpackModelDefRequest(b)
	case MessageModelDef:
		return unpackMoCapDescription(b, ver)
	case MessageRequestFrameOfData:
		return unpackRequestFrameOfData(b)
	case MessageFrameOfData:
		return unpackMoCapData(b, ver)
	case MessageMessageString:
		return unpackMessageString(b)
	case MessageDisconnect:
		return unpackDisconnect(b)
	case MessageKeepAlive:
		return unpackKeepAlive(b)
	case MessageDisconnectByTimeout:
		return unpackDisconnectByTimeout(b)
	case MessageEchoRequest:
		return unpackEchoRequest(b)
	case MessageEchoResponse:
		return unpackEchoResponse(b)
	case MessageDiscovery:
		return unpackDiscoveryRequest(b)
	case MessageUnrecognizedRequest:
		return unpackUnrecognizedRequest(b)
	default:
		return nil, errs.New(errs.Malformed, fmt.Sprintf("unknown message id %d", int(id)))
	}
}
