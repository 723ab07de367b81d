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
	"github.com/oryx-natnet/natnet-go/buffer"
	"github.com/oryx-natnet/natnet-go/errs"
)

// MarkerSetData is one named marker set's per-frame positions.
type MarkerSetData struct {
	Name    string
	Markers []buffer.Vector3
}

// RigidBodyData is one rigid body's per-frame pose and tracking
// quality. Field layout below varies by stream version (§4.2, §6).
type RigidBodyData struct {
	ID               int32
	Position         buffer.Vector3
	Orientation      buffer.Quaternion
	Markers          []buffer.Vector3 // pre-3.0 only (major < 3 && major != 0)
	MarkerIDs        []int32          // major >= 2
	MarkerSizes      []float32        // major >= 2
	MeanError        float32          // major >= 2
	TrackingValid    bool             // (major==2 && minor>=6) || major>2
}

// SkeletonData is one named skeleton's rigid-body-pose array for the frame.
type SkeletonData struct {
	ID          int32
	RigidBodies []RigidBodyData
}

// LabeledMarkerData is one labeled marker's per-frame position and
// tracking parameters.
type LabeledMarkerData struct {
	ID                int32
	ModelID           int32
	MarkerID          int32
	Position          buffer.Vector3
	Size              float32
	Param             uint16  // (major==2 && minor>=6) || major>2
	Residual          float32 // major >= 3
	Occluded          bool
	PointCloudSolved  bool
	ModelSolved       bool
}

// ForcePlateChannel is one analog channel's samples for the frame.
type ForcePlateChannel struct {
	Values []float32
}

// ForcePlateData is one force plate's per-frame analog channel data.
// Present only at (major==2 && minor>=9) || major>2.
type ForcePlateData struct {
	ID       int32
	Channels []ForcePlateChannel
}

// DeviceChannel is one analog device channel's samples for the frame.
type DeviceChannel struct {
	Values []float32
}

// DeviceData is one peripheral device's per-frame analog channel data.
// Present only at (major==2 && minor>=11) || major>2.
type DeviceData struct {
	ID       int32
	Channels []DeviceChannel
}

// FrameSuffixData is the trailing block of a frame: timing info,
// latency/recording flags, and the timestamp of this packet.
type FrameSuffixData struct {
	Timecode            uint32
	TimecodeSub          uint32
	Timestamp            float64
	CameraMidExposure    uint64 // major >= 3
	CameraDataReceived   uint64 // major >= 3
	TransmitTimestamp    uint64 // major >= 3
	Recording            bool
	TrackedModelsChanged bool
	LiveEditing          bool // edit mode flag, newer servers only
	BitstreamChanged     bool
}

// MoCapData is one full FrameOfData packet (§3, §4.2, §6): the frame
// number, every tracked entity's per-frame state, and the trailing
// FrameSuffixData.
type MoCapData struct {
	FrameNumber    int32
	MarkerSets     []MarkerSetData
	UnlabeledMarkers []buffer.Vector3
	RigidBodies    []RigidBodyData
	Skeletons      []SkeletonData
	LabeledMarkers []LabeledMarkerData
	ForcePlates    []ForcePlateData
	Devices        []DeviceData
	Suffix         FrameSuffixData
}

func (m *MoCapData) ID() MessageID { return MessageFrameOfData }

func hasSkeletons(ver StreamVersion) bool {
	return (ver.Major == 2 && ver.Minor > 0) || ver.Major > 2
}

func hasLabeledMarkers(ver StreamVersion) bool {
	return (ver.Major == 2 && ver.Minor > 3) || ver.Major > 2
}

func hasLabeledMarkerParam(ver StreamVersion) bool {
	return (ver.Major == 2 && ver.Minor >= 6) || ver.Major > 2
}

func hasForcePlates(ver StreamVersion) bool {
	return (ver.Major == 2 && ver.Minor >= 9) || ver.Major > 2
}

func hasDevices(ver StreamVersion) bool {
	return (ver.Major == 2 && ver.Minor >= 11) || ver.Major > 2
}

func hasRigidBodyPreV3Markers(ver StreamVersion) bool {
	return ver.Major != 0 && ver.Major < 3
}

func hasRigidBodyMarkerLists(ver StreamVersion) bool {
	return ver.Major >= 2
}

func hasRigidBodyTrackingValid(ver StreamVersion) bool {
	return (ver.Major == 2 && ver.Minor >= 6) || ver.Major > 2
}

func hasFrameTimestampDouble(ver StreamVersion) bool {
	return (ver.Major == 2 && ver.Minor >= 7) || ver.Major > 2
}

func hasFrameStamps(ver StreamVersion) bool {
	return ver.Major >= 3
}

// packPayload is intentionally not offered for MoCapData: the client
// never originates FrameOfData, only decodes it.
func (m *MoCapData) packPayload(w *buffer.WriteBuffer) {
	panic("natnet: MoCapData is server-originated and cannot be packed")
}

func unpackMoCapData(b *buffer.Buffer, ver StreamVersion) (*MoCapData, error) {
	m := &MoCapData{}

	frameNumber, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read frame number")
	}
	m.FrameNumber = frameNumber

	markerSetCount, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read marker set count")
	}
	for i := int32(0); i < markerSetCount; i++ {
		name, err := b.ReadString(0)
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read marker set name")
		}
		markerCount, err := b.ReadInt()
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read marker set marker count")
		}
		markers := make([]buffer.Vector3, markerCount)
		for j := range markers {
			v, err := b.ReadVector()
			if err != nil {
				return nil, errs.Wrap(errs.Malformed, err, "read marker set marker")
			}
			markers[j] = v
		}
		m.MarkerSets = append(m.MarkerSets, MarkerSetData{Name: name, Markers: markers})
	}

	unlabeledCount, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read unlabeled marker count")
	}
	for i := int32(0); i < unlabeledCount; i++ {
		v, err := b.ReadVector()
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read unlabeled marker")
		}
		m.UnlabeledMarkers = append(m.UnlabeledMarkers, v)
	}

	rigidBodyCount, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read rigid body count")
	}
	for i := int32(0); i < rigidBodyCount; i++ {
		rb, err := unpackRigidBodyData(b, ver)
		if err != nil {
			return nil, err
		}
		m.RigidBodies = append(m.RigidBodies, *rb)
	}

	if hasSkeletons(ver) {
		skeletonCount, err := b.ReadInt()
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read skeleton count")
		}
		for i := int32(0); i < skeletonCount; i++ {
			skID, err := b.ReadInt()
			if err != nil {
				return nil, errs.Wrap(errs.Malformed, err, "read skeleton id")
			}
			rbCount, err := b.ReadInt()
			if err != nil {
				return nil, errs.Wrap(errs.Malformed, err, "read skeleton rigid body count")
			}
			rbs := make([]RigidBodyData, 0, rbCount)
			for j := int32(0); j < rbCount; j++ {
				rb, err := unpackRigidBodyData(b, ver)
				if err != nil {
					return nil, err
				}
				rbs = append(rbs, *rb)
			}
			m.Skeletons = append(m.Skeletons, SkeletonData{ID: skID, RigidBodies: rbs})
		}
	}

	if hasLabeledMarkers(ver) {
		labeledCount, err := b.ReadInt()
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read labeled marker count")
		}
		for i := int32(0); i < labeledCount; i++ {
			lm, err := unpackLabeledMarker(b, ver)
			if err != nil {
				return nil, err
			}
			m.LabeledMarkers = append(m.LabeledMarkers, *lm)
		}
	}

	if hasForcePlates(ver) {
		fpCount, err := b.ReadInt()
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read force plate count")
		}
		for i := int32(0); i < fpCount; i++ {
			fp, err := unpackForcePlate(b)
			if err != nil {
				return nil, err
			}
			m.ForcePlates = append(m.ForcePlates, *fp)
		}
	}

	if hasDevices(ver) {
		devCount, err := b.ReadInt()
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read device count")
		}
		for i := int32(0); i < devCount; i++ {
			dev, err := unpackDevice(b)
			if err != nil {
				return nil, err
			}
			m.Devices = append(m.Devices, *dev)
		}
	}

	suffix, err := unpackFrameSuffix(b, ver)
	if err != nil {
		return nil, err
	}
	m.Suffix = *suffix

	// trailing i32 == 0 sentinel
	if b.Remaining() >= 4 {
		if _, err := b.ReadInt(); err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read frame sentinel")
		}
	}

	return m, nil
}

func unpackRigidBodyData(b *buffer.Buffer, ver StreamVersion) (*RigidBodyData, error) {
	rb := &RigidBodyData{}

	id, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read rigid body id")
	}
	rb.ID = id

	pos, err := b.ReadVector()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read rigid body position")
	}
	rb.Position = pos

	quat, err := b.ReadQuaternion()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read rigid body orientation")
	}
	rb.Orientation = quat

	if hasRigidBodyPreV3Markers(ver) {
		markerCount, err := b.ReadInt()
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read rigid body marker count")
		}
		markers := make([]buffer.Vector3, markerCount)
		for i := range markers {
			v, err := b.ReadVector()
			if err != nil {
				return nil, errs.Wrap(errs.Malformed, err, "read rigid body marker")
			}
			markers[i] = v
		}
		rb.Markers = markers

		if hasRigidBodyMarkerLists(ver) {
			ids := make([]int32, markerCount)
			for i := range ids {
				v, err := b.ReadInt()
				if err != nil {
					return nil, errs.Wrap(errs.Malformed, err, "read rigid body marker id")
				}
				ids[i] = v
			}
			rb.MarkerIDs = ids

			sizes := make([]float32, markerCount)
			for i := range sizes {
				v, err := b.ReadFloat()
				if err != nil {
					return nil, errs.Wrap(errs.Malformed, err, "read rigid body marker size")
				}
				sizes[i] = v
			}
			rb.MarkerSizes = sizes
		}
	}

	if ver.Major >= 2 {
		meanErr, err := b.ReadFloat()
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read rigid body mean error")
		}
		rb.MeanError = meanErr
	}

	if hasRigidBodyTrackingValid(ver) {
		param, err := b.ReadUShort()
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read rigid body tracking valid param")
		}
		rb.TrackingValid = param&0x01 != 0
	}

	return rb, nil
}

func unpackLabeledMarker(b *buffer.Buffer, ver StreamVersion) (*LabeledMarkerData, error) {
	lm := &LabeledMarkerData{}

	id, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read labeled marker id")
	}
	lm.ID = id
	lm.ModelID = id >> 16
	lm.MarkerID = id & 0xFFFF

	pos, err := b.ReadVector()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read labeled marker position")
	}
	lm.Position = pos

	size, err := b.ReadFloat()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read labeled marker size")
	}
	lm.Size = size

	if hasLabeledMarkerParam(ver) {
		param, err := b.ReadUShort()
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read labeled marker param")
		}
		lm.Param = param
		lm.Occluded = param&0x01 != 0
		lm.PointCloudSolved = param&0x02 != 0
		lm.ModelSolved = param&0x04 != 0
	}

	if ver.Major >= 3 {
		residual, err := b.ReadFloat()
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read labeled marker residual")
		}
		lm.Residual = residual
	}

	return lm, nil
}

func unpackForcePlate(b *buffer.Buffer) (*ForcePlateData, error) {
	id, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read force plate id")
	}
	channelCount, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read force plate channel count")
	}
	channels := make([]ForcePlateChannel, channelCount)
	for i := range channels {
		frameCount, err := b.ReadInt()
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read force plate frame count")
		}
		values := make([]float32, frameCount)
		for j := range values {
			v, err := b.ReadFloat()
			if err != nil {
				return nil, errs.Wrap(errs.Malformed, err, "read force plate sample")
			}
			values[j] = v
		}
		channels[i] = ForcePlateChannel{Values: values}
	}
	return &ForcePlateData{ID: id, Channels: channels}, nil
}

func unpackDevice(b *buffer.Buffer) (*DeviceData, error) {
	id, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read device id")
	}
	channelCount, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read device channel count")
	}
	channels := make([]DeviceChannel, channelCount)
	for i := range channels {
		frameCount, err := b.ReadInt()
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read device frame count")
		}
		values := make([]float32, frameCount)
		for j := range values {
			v, err := b.ReadFloat()
			if err != nil {
				return nil, errs.Wrap(errs.Malformed, err, "read device sample")
			}
			values[j] = v
		}
		channels[i] = DeviceChannel{Values: values}
	}
	return &DeviceData{ID: id, Channels: channels}, nil
}

func unpackFrameSuffix(b *buffer.Buffer, ver StreamVersion) (*FrameSuffixData, error) {
	s := &FrameSuffixData{}

	timecode, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read frame suffix timecode")
	}
	timecodeSub, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read frame suffix timecode sub")
	}
	s.Timecode = uint32(timecode)
	s.TimecodeSub = uint32(timecodeSub)

	if hasFrameTimestampDouble(ver) {
		ts, err := b.ReadDouble()
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read frame suffix timestamp")
		}
		s.Timestamp = ts
	} else {
		ts, err := b.ReadFloat()
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read frame suffix timestamp")
		}
		s.Timestamp = float64(ts)
	}

	if hasFrameStamps(ver) {
		mid, err := b.ReadULong()
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read frame suffix mid-exposure stamp")
		}
		s.CameraMidExposure = mid

		recv, err := b.ReadULong()
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read frame suffix camera data received stamp")
		}
		s.CameraDataReceived = recv

		tx, err := b.ReadULong()
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read frame suffix transmit stamp")
		}
		s.TransmitTimestamp = tx
	}

	param, err := b.ReadUShort()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read frame suffix param")
	}
	s.Recording = param&0x01 != 0
	s.TrackedModelsChanged = param&0x02 != 0
	s.LiveEditing = param&0x04 != 0
	s.BitstreamChanged = param&0x08 != 0

	return s, nil
}
