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

// Package natnet implements the NatNet wire codec: the message
// structs of §3, the envelope framing and message-id table of §4.2,
// and the version-dependent pack/unpack rules that govern every field
// layout below NatNet protocol version 5.
package natnet

import "sync/atomic"

// VersionQuad is the 4-byte (major, minor, build, revision) version
// tuple NatNet embeds in Connect/Discovery requests and ServerInfo
// replies.
type VersionQuad [4]uint8

// Major is the negotiated major version component.
func (v VersionQuad) Major() int { return int(v[0]) }

// Minor is the negotiated minor version component.
func (v VersionQuad) Minor() int { return int(v[1]) }

// defaultVersionQuad is the quad the client advertises in Connect and
// Discovery requests before any server negotiation has happened.
var defaultVersionQuad = VersionQuad{3, 0, 0, 0}

// StreamVersion is the (major, minor) pair the codec consults on every
// pack/unpack to choose a field layout. major == 0 is NatNet's
// "development / unknown" sentinel and is treated as "newest" by the
// handful of decoders that check for it explicitly (RigidBodyDescription).
type StreamVersion struct {
	Major int
	Minor int
}

// AtLeast reports whether this version is >= (major, minor).
func (v StreamVersion) AtLeast(major, minor int) bool {
	if v.Major != major {
		return v.Major > major
	}
	return v.Minor >= minor
}

// defaultStreamVersion is the compiled default: (3, 0).
var defaultStreamVersion = StreamVersion{Major: 3, Minor: 0}

// globalVersion is the process-wide negotiated version. It must be
// updated before any non-ServerInfo message is decoded (§3). Readers
// and writers may run on different goroutines (command channel reads,
// client-side requests), so it is held behind an atomic.Value rather
// than a bare struct field.
var globalVersion atomic.Value

func init() {
	globalVersion.Store(defaultStreamVersion)
}

// GetVersion returns the current process-wide negotiated version.
func GetVersion() StreamVersion {
	return globalVersion.Load().(StreamVersion)
}

// SetVersion updates the process-wide negotiated version. Called on
// successful connect (from ServerInfo.StreamVersion) and on an explicit
// Bitstream change (client.SetVersion).
func SetVersion(major, minor int) {
	globalVersion.Store(StreamVersion{Major: major, Minor: minor})
}
