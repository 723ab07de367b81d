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
	"net"

	"github.com/oryx-natnet/natnet-go/buffer"
	"github.com/oryx-natnet/natnet-go/errs"
)

// ConnectionInfo describes the data channel the server wants this
// client to use. It is only present in ServerInfo replies from servers
// at major version >= 3 (§3, §6).
type ConnectionInfo struct {
	DataPort         uint16
	Multicast        bool
	MulticastAddress net.IP
}

// ServerInfo is the server's reply to Connect, carrying its
// application name, its own build version, the negotiated stream
// version, and (major >= 3) the data channel it wants the client to
// join.
type ServerInfo struct {
	ApplicationName string
	ServerVersion   VersionQuad
	StreamVersion   VersionQuad
	ClockFreq       uint64
	ConnectionInfo  *ConnectionInfo
}

// CanSubscribe reports whether this server build accepts
// SubscribeToData/SubscribeByID commands (stream major >= 4, unicast only).
func (s *ServerInfo) CanSubscribe() bool {
	multicast := s.ConnectionInfo != nil && s.ConnectionInfo.Multicast
	return s.StreamVersion.Major() >= 4 && !multicast
}

// CanChangeBitstreamVersion reports whether this server build accepts
// a Bitstream command to renegotiate the wire version mid-session
// (stream major >= 4, unicast only).
func (s *ServerInfo) CanChangeBitstreamVersion() bool {
	return s.CanSubscribe()
}

func (m *ServerInfo) ID() MessageID { return MessageServerInfo }

func (m *ServerInfo) packPayload(w *buffer.WriteBuffer) {
	w.WriteString(m.ApplicationName, 256)
	w.WriteBytes(m.ServerVersion[:], 0)
	w.WriteBytes(m.StreamVersion[:], 0)
	if m.StreamVersion.Major() >= 3 {
		w.WriteULong(m.ClockFreq)
		if m.ConnectionInfo != nil {
			w.WriteUShort(m.ConnectionInfo.DataPort)
			w.WriteBool(m.ConnectionInfo.Multicast)
			ip4 := m.ConnectionInfo.MulticastAddress.To4()
			w.WriteBytes(ip4, 4)
		}
	}
}

func unpackServerInfo(b *buffer.Buffer, ver StreamVersion) (*ServerInfo, error) {
	name, err := b.ReadString(256)
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read server info application name")
	}

	m := &ServerInfo{ApplicationName: name}
	if err := readVersionQuad(b, &m.ServerVersion); err != nil {
		return nil, err
	}
	if err := readVersionQuad(b, &m.StreamVersion); err != nil {
		return nil, err
	}

	if m.StreamVersion.Major() >= 3 {
		clockFreq, err := b.ReadULong()
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read server info clock frequency")
		}
		m.ClockFreq = clockFreq

		if b.Remaining() >= 7 {
			dataPort, err := b.ReadUShort()
			if err != nil {
				return nil, errs.Wrap(errs.Malformed, err, "read connection info data port")
			}
			multicast, err := b.ReadBool()
			if err != nil {
				return nil, errs.Wrap(errs.Malformed, err, "read connection info multicast flag")
			}
			addrBytes, err := b.ReadBytes(4)
			if err != nil {
				return nil, errs.Wrap(errs.Malformed, err, "read connection info multicast address")
			}
			m.ConnectionInfo = &ConnectionInfo{
				DataPort:         dataPort,
				Multicast:        multicast,
				MulticastAddress: net.IPv4(addrBytes[0], addrBytes[1], addrBytes[2], addrBytes[3]),
			}
		}
	}

	return m, nil
}
