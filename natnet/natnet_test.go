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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oryx-natnet/natnet-go/buffer"
)

func TestEnvelopeSizeInvariant(t *testing.T) {
	msg := &KeepAlive{}
	raw := Pack(msg)
	require.Len(t, raw, 4)

	b := buffer.New(raw)
	_, err := b.ReadUShort()
	require.NoError(t, err)
	size, err := b.ReadShort()
	require.NoError(t, err)
	require.EqualValues(t, len(raw)-4, size)
}

func TestConnectRequestRoundTrip(t *testing.T) {
	req := NewConnectRequest()
	raw := Pack(req)

	decoded, err := UnpackWithVersion(raw, StreamVersion{Major: 3, Minor: 0})
	require.NoError(t, err)

	got, ok := decoded.(*ConnectRequest)
	require.True(t, ok)
	require.Equal(t, req.NatNetVersion, got.NatNetVersion)
	require.Equal(t, req.ConnectionOptions, got.ConnectionOptions)
}

func TestDiscoveryRequestRoundTrip(t *testing.T) {
	req := NewDiscoveryRequest()
	raw := Pack(req)

	decoded, err := UnpackWithVersion(raw, StreamVersion{Major: 3, Minor: 0})
	require.NoError(t, err)

	_, ok := decoded.(*DiscoveryRequest)
	require.True(t, ok)
}

func TestEchoRoundTrip(t *testing.T) {
	req := &EchoRequest{Timestamp: 123456789}
	raw := Pack(req)
	decoded, err := UnpackWithVersion(raw, StreamVersion{Major: 3, Minor: 0})
	require.NoError(t, err)
	got := decoded.(*EchoRequest)
	require.EqualValues(t, 123456789, got.Timestamp)

	resp := &EchoResponse{RequestStamp: 1, ReceivedStamp: 2}
	raw = Pack(resp)
	decoded, err = UnpackWithVersion(raw, StreamVersion{Major: 3, Minor: 0})
	require.NoError(t, err)
	gotResp := decoded.(*EchoResponse)
	require.EqualValues(t, 1, gotResp.RequestStamp)
	require.EqualValues(t, 2, gotResp.ReceivedStamp)
}

func TestSubscribeCommandsIncludeKindToken(t *testing.T) {
	require.Equal(t, "SubscribeToData,RigidBody,all", SubscribeToDataCommand("RigidBody", "all"))
	require.Equal(t, "SubscribeToData,RigidBody,Hip", SubscribeToDataCommand("RigidBody", "Hip"))
	require.Equal(t, "SubscribeByID,RigidBody,7", SubscribeByIDCommand("RigidBody", 7))
	require.Equal(t, "SubscribeToData,RigidBody,Hip,None", UnsubscribeCommand("RigidBody", "Hip"))
	require.Equal(t, "SubscribeByID,RigidBody,7,None", UnsubscribeByIDCommand("RigidBody", 7))
}

func TestRequestStringRoundTrip(t *testing.T) {
	req := &Request{Command: SetPropertyCommand("", "FrameRate", "120")}
	raw := Pack(req)
	decoded, err := UnpackWithVersion(raw, StreamVersion{Major: 3, Minor: 0})
	require.NoError(t, err)
	got := decoded.(*Request)
	require.Equal(t, "SetProperty,FrameRate,120", got.Command)
}

func TestServerInfoGatesConnectionInfoByMajorVersion(t *testing.T) {
	w := buffer.NewWrite()
	w.WriteString("Motive", 256)
	w.WriteBytes([]byte{2, 10, 0, 0}, 0)
	w.WriteBytes([]byte{2, 10, 0, 0}, 0)

	si, err := unpackServerInfo(buffer.New(w.Bytes()), StreamVersion{Major: 2, Minor: 10})
	require.NoError(t, err)
	require.Equal(t, "Motive", si.ApplicationName)
	require.Nil(t, si.ConnectionInfo)
	require.False(t, si.CanSubscribe())
}

func TestServerInfoWithConnectionInfoAtMajorThree(t *testing.T) {
	w := buffer.NewWrite()
	w.WriteString("Motive", 256)
	w.WriteBytes([]byte{3, 1, 0, 0}, 0)
	w.WriteBytes([]byte{3, 1, 0, 0}, 0)
	w.WriteULong(96000)
	w.WriteUShort(1511)
	w.WriteBool(true)
	w.WriteBytes(net.IPv4(239, 255, 42, 99).To4(), 4)

	si, err := unpackServerInfo(buffer.New(w.Bytes()), StreamVersion{Major: 3, Minor: 1})
	require.NoError(t, err)
	require.NotNil(t, si.ConnectionInfo)
	require.EqualValues(t, 1511, si.ConnectionInfo.DataPort)
	require.True(t, si.ConnectionInfo.Multicast)
	require.False(t, si.CanSubscribe())
	require.False(t, si.CanChangeBitstreamVersion())
}

func TestServerInfoGatesOnStreamVersionNotServerVersion(t *testing.T) {
	w := buffer.NewWrite()
	w.WriteString("Motive", 256)
	w.WriteBytes([]byte{3, 1, 0, 0}, 0)
	w.WriteBytes([]byte{2, 10, 0, 0}, 0)

	si, err := unpackServerInfo(buffer.New(w.Bytes()), StreamVersion{Major: 2, Minor: 10})
	require.NoError(t, err)
	require.EqualValues(t, 3, si.ServerVersion.Major())
	require.EqualValues(t, 2, si.StreamVersion.Major())
	require.Nil(t, si.ConnectionInfo)
	require.Zero(t, si.ClockFreq)
}

func TestUnpackServerInfoUpdatesProcessWideVersion(t *testing.T) {
	defer SetVersion(defaultStreamVersion.Major, defaultStreamVersion.Minor)

	w := buffer.NewWrite()
	w.WriteUShort(uint16(MessageServerInfo))
	w.WriteUShort(0)
	start := w.Len()
	w.WriteString("Motive", 256)
	w.WriteBytes([]byte{4, 0, 0, 0}, 0)
	w.WriteBytes([]byte{4, 0, 0, 0}, 0)
	w.WriteULong(96000)
	w.WriteUShort(1511)
	w.WriteBool(false)
	w.WriteBytes(net.IPv4(0, 0, 0, 0).To4(), 4)
	w.SetShort(2, int16(w.Len()-start))

	SetVersion(3, 0)
	_, err := Unpack(w.Bytes())
	require.NoError(t, err)
	require.Equal(t, StreamVersion{Major: 4, Minor: 0}, GetVersion())
}

func rigidBodyFixture() RigidBodyData {
	return RigidBodyData{
		ID:          7,
		Position:    buffer.Vector3{1, 2, 3},
		Orientation: buffer.Quaternion{0, 0, 0, 1},
	}
}

func packRigidBodyForTest(rb RigidBodyData, ver StreamVersion) []byte {
	w := buffer.NewWrite()
	w.WriteInt(rb.ID)
	w.WriteVector(rb.Position)
	w.WriteQuaternion(rb.Orientation)
	if hasRigidBodyPreV3Markers(ver) {
		w.WriteInt(0)
	}
	if ver.Major >= 2 {
		w.WriteFloat(rb.MeanError)
	}
	if hasRigidBodyTrackingValid(ver) {
		w.WriteUShort(1)
	}
	return w.Bytes()
}

func TestRigidBodyDataVersionGating(t *testing.T) {
	rb := rigidBodyFixture()

	v26 := StreamVersion{Major: 2, Minor: 6}
	raw := packRigidBodyForTest(rb, v26)
	decoded, err := unpackRigidBodyData(buffer.New(raw), v26)
	require.NoError(t, err)
	require.True(t, decoded.TrackingValid)
	require.Empty(t, decoded.Markers)

	v3 := StreamVersion{Major: 3, Minor: 0}
	raw3 := packRigidBodyForTest(rb, v3)
	decoded3, err := unpackRigidBodyData(buffer.New(raw3), v3)
	require.NoError(t, err)
	require.True(t, decoded3.TrackingValid)
	require.Empty(t, decoded3.Markers)

	v1 := StreamVersion{Major: 1, Minor: 0}
	raw1 := packRigidBodyForTest(rb, v1)
	decoded1, err := unpackRigidBodyData(buffer.New(raw1), v1)
	require.NoError(t, err)
	require.False(t, decoded1.TrackingValid)
}

func TestLabeledMarkerIDDecomposition(t *testing.T) {
	w := buffer.NewWrite()
	id := int32(3)<<16 | int32(42)
	w.WriteInt(id)
	w.WriteVector(buffer.Vector3{1, 2, 3})
	w.WriteFloat(0.01)
	w.WriteUShort(0x03)
	w.WriteFloat(0.5)

	ver := StreamVersion{Major: 3, Minor: 0}
	lm, err := unpackLabeledMarker(buffer.New(w.Bytes()), ver)
	require.NoError(t, err)
	require.EqualValues(t, 3, lm.ModelID)
	require.EqualValues(t, 42, lm.MarkerID)
	require.True(t, lm.Occluded)
	require.True(t, lm.PointCloudSolved)
	require.False(t, lm.ModelSolved)
	require.InDelta(t, 0.5, lm.Residual, 1e-6)
}

func TestFrameSuffixTimestampWidthGating(t *testing.T) {
	older := StreamVersion{Major: 2, Minor: 5}
	w := buffer.NewWrite()
	w.WriteULong(0)
	w.WriteFloat(1.5)
	w.WriteUShort(0x01)
	suf, err := unpackFrameSuffix(buffer.New(w.Bytes()), older)
	require.NoError(t, err)
	require.InDelta(t, 1.5, suf.Timestamp, 1e-6)
	require.True(t, suf.Recording)

	newer := StreamVersion{Major: 3, Minor: 0}
	w2 := buffer.NewWrite()
	w2.WriteULong(0)
	w2.WriteDouble(2.5)
	w2.WriteULong(10)
	w2.WriteULong(11)
	w2.WriteULong(12)
	w2.WriteUShort(0x0C)
	suf2, err := unpackFrameSuffix(buffer.New(w2.Bytes()), newer)
	require.NoError(t, err)
	require.InDelta(t, 2.5, suf2.Timestamp, 1e-6)
	require.EqualValues(t, 10, suf2.CameraMidExposure)
	require.True(t, suf2.LiveEditing)
	require.True(t, suf2.BitstreamChanged)
}

func TestDataDescriptionsSkipsEmptyForcePlateAndDevice(t *testing.T) {
	w := buffer.NewWrite()
	w.WriteInt(2)

	w.WriteInt(int32(tagForcePlate))
	w.WriteInt(0)
	w.WriteString("", 128)
	w.WriteFloat(0)
	w.WriteFloat(0)
	w.WriteVector(buffer.Vector3{})
	for i := 0; i < 12; i++ {
		w.WriteMatrixRow(buffer.MatrixRow{})
	}
	for i := 0; i < 4; i++ {
		w.WriteFloat(0)
		w.WriteFloat(0)
		w.WriteFloat(0)
	}
	w.WriteInt(0)
	w.WriteInt(0)
	w.WriteInt(0)

	w.WriteInt(int32(tagDevice))
	w.WriteInt(0)
	w.WriteString("", 0)
	w.WriteString("", 0)
	w.WriteInt(0)
	w.WriteInt(0)

	dd, err := unpackMoCapDescription(buffer.New(w.Bytes()), StreamVersion{Major: 3, Minor: 0})
	require.NoError(t, err)
	require.Len(t, dd.Descriptions, 2)
	require.Nil(t, dd.Descriptions[0].ForcePlate)
	require.Nil(t, dd.Descriptions[1].Device)
}

func TestRigidBodyDescriptionVersionGating(t *testing.T) {
	v1 := StreamVersion{Major: 1, Minor: 0}
	w := buffer.NewWrite()
	w.WriteInt(1)
	w.WriteInt(-1)
	w.WriteVector(buffer.Vector3{0, 0, 0})
	rbd, err := unpackRigidBodyDescription(buffer.New(w.Bytes()), v1)
	require.NoError(t, err)
	require.Empty(t, rbd.Name)
	require.Empty(t, rbd.Markers)

	v4 := StreamVersion{Major: 4, Minor: 0}
	w2 := buffer.NewWrite()
	w2.WriteString("Hip", 0)
	w2.WriteInt(1)
	w2.WriteInt(-1)
	w2.WriteVector(buffer.Vector3{0, 0, 0})
	w2.WriteInt(1)
	w2.WriteVector(buffer.Vector3{1, 1, 1})
	w2.WriteInt(9)
	w2.WriteString("M1", 0)
	rbd2, err := unpackRigidBodyDescription(buffer.New(w2.Bytes()), v4)
	require.NoError(t, err)
	require.Equal(t, "Hip", rbd2.Name)
	require.Len(t, rbd2.Markers, 1)
	require.Equal(t, []string{"M1"}, rbd2.MarkerNames)
}
