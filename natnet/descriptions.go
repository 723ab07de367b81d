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

// descriptionTag is the i32 type tag prefixing each entry in a
// DataDescriptions payload.
type descriptionTag int32

const (
	tagMarkerSet   descriptionTag = 0
	tagRigidBody   descriptionTag = 1
	tagSkeleton    descriptionTag = 2
	tagForcePlate  descriptionTag = 3
	tagDevice      descriptionTag = 4
	tagCamera      descriptionTag = 5
)

// MarkerSetDescription names a marker set and its member marker names.
type MarkerSetDescription struct {
	Name        string
	MarkerNames []string
}

// RigidBodyDescription describes one rigid body's identity and
// (version-dependent) its embedded marker layout.
type RigidBodyDescription struct {
	Name        string // major>=2 || major==0
	ID          int32
	ParentID    int32
	Offset      buffer.Vector3
	Markers     []buffer.Vector3 // major>=3 || major==0
	MarkerIDs   []int32          // major>=3 || major==0
	MarkerNames []string         // major>=4 || major==0
}

// SkeletonDescription names a skeleton and its rigid body members.
type SkeletonDescription struct {
	Name        string
	ID          int32
	RigidBodies []RigidBodyDescription
}

// Matrix12x12 is a force plate's 12x12 calibration matrix.
type Matrix12x12 [12]buffer.MatrixRow

// Matrix3x4 is a force plate's 4 corner positions, 3 floats each.
type Matrix3x4 [4][3]float32

// ForcePlateDescription describes one force plate. Present only at
// major >= 3.
type ForcePlateDescription struct {
	ID            int32
	SerialNumber  string
	Width         float32
	Length        float32
	Origin        buffer.Vector3
	CalMatrix     Matrix12x12
	Corners       Matrix3x4
	PlateType     int32
	ChannelDataType int32
	ChannelNames  []string
}

// DeviceDescription describes one peripheral analog device. Present
// only at major >= 3.
type DeviceDescription struct {
	ID           int32
	Name         string
	SerialNumber string
	DeviceType   int32
	ChannelNames []string
}

// CameraDescription describes one calibrated camera in the capture volume.
type CameraDescription struct {
	Name        string
	Position    buffer.Vector3
	Orientation buffer.Quaternion
}

// MoCapDescription is one tagged entry in a DataDescriptions payload.
// At most one of the typed fields is non-nil, chosen by the entry's wire
// type tag; an empty force plate or device entry leaves all of them nil.
type MoCapDescription struct {
	MarkerSet  *MarkerSetDescription
	RigidBody  *RigidBodyDescription
	Skeleton   *SkeletonDescription
	ForcePlate *ForcePlateDescription
	Device     *DeviceDescription
	Camera     *CameraDescription
}

// DataDescriptions is the ModelDef reply: the i32-count-prefixed list
// of tagged descriptions the server currently knows about.
type DataDescriptions struct {
	Descriptions []MoCapDescription
}

func (m *DataDescriptions) ID() MessageID { return MessageModelDef }

func (m *DataDescriptions) packPayload(w *buffer.WriteBuffer) {
	panic("natnet: DataDescriptions is server-originated and cannot be packed")
}

func unpackMoCapDescription(b *buffer.Buffer, ver StreamVersion) (*DataDescriptions, error) {
	count, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read description count")
	}

	out := &DataDescriptions{}
	for i := int32(0); i < count; i++ {
		rawTag, err := b.ReadInt()
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read description tag")
		}
		tag := descriptionTag(rawTag)

		var desc MoCapDescription
		switch tag {
		case tagMarkerSet:
			d, err := unpackMarkerSetDescription(b)
			if err != nil {
				return nil, err
			}
			desc.MarkerSet = d
		case tagRigidBody:
			d, err := unpackRigidBodyDescription(b, ver)
			if err != nil {
				return nil, err
			}
			desc.RigidBody = d
		case tagSkeleton:
			d, err := unpackSkeletonDescription(b, ver)
			if err != nil {
				return nil, err
			}
			desc.Skeleton = d
		case tagForcePlate:
			d, err := unpackForcePlateDescription(b)
			if err != nil {
				return nil, err
			}
			if d != nil {
				desc.ForcePlate = d
			}
		case tagDevice:
			d, err := unpackDeviceDescription(b)
			if err != nil {
				return nil, err
			}
			if d != nil {
				desc.Device = d
			}
		case tagCamera:
			d, err := unpackCameraDescription(b)
			if err != nil {
				return nil, err
			}
			desc.Camera = d
		default:
			return nil, errs.New(errs.Malformed, "unknown description tag")
		}

		out.Descriptions = append(out.Descriptions, desc)
	}

	return out, nil
}

func unpackMarkerSetDescription(b *buffer.Buffer) (*MarkerSetDescription, error) {
	name, err := b.ReadString(0)
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read marker set description name")
	}
	count, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read marker set description marker count")
	}
	names := make([]string, count)
	for i := range names {
		n, err := b.ReadString(0)
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read marker set description marker name")
		}
		names[i] = n
	}
	return &MarkerSetDescription{Name: name, MarkerNames: names}, nil
}

func hasRigidBodyDescName(ver StreamVersion) bool {
	return ver.Major == 0 || ver.Major >= 2
}

func hasRigidBodyDescMarkers(ver StreamVersion) bool {
	return ver.Major == 0 || ver.Major >= 3
}

func hasRigidBodyDescMarkerNames(ver StreamVersion) bool {
	return ver.Major == 0 || ver.Major >= 4
}

func unpackRigidBodyDescription(b *buffer.Buffer, ver StreamVersion) (*RigidBodyDescription, error) {
	d := &RigidBodyDescription{}

	if hasRigidBodyDescName(ver) {
		name, err := b.ReadString(0)
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read rigid body description name")
		}
		d.Name = name
	}

	id, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read rigid body description id")
	}
	d.ID = id

	parentID, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read rigid body description parent id")
	}
	d.ParentID = parentID

	offset, err := b.ReadVector()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read rigid body description offset")
	}
	d.Offset = offset

	if hasRigidBodyDescMarkers(ver) {
		markerCount, err := b.ReadInt()
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read rigid body description marker count")
		}
		markers := make([]buffer.Vector3, markerCount)
		for i := range markers {
			v, err := b.ReadVector()
			if err != nil {
				return nil, errs.Wrap(errs.Malformed, err, "read rigid body description marker")
			}
			markers[i] = v
		}
		d.Markers = markers

		ids := make([]int32, markerCount)
		for i := range ids {
			v, err := b.ReadInt()
			if err != nil {
				return nil, errs.Wrap(errs.Malformed, err, "read rigid body description marker id")
			}
			ids[i] = v
		}
		d.MarkerIDs = ids

		if hasRigidBodyDescMarkerNames(ver) {
			names := make([]string, markerCount)
			for i := range names {
				n, err := b.ReadString(0)
				if err != nil {
					return nil, errs.Wrap(errs.Malformed, err, "read rigid body description marker name")
				}
				names[i] = n
			}
			d.MarkerNames = names
		}
	}

	return d, nil
}

func unpackSkeletonDescription(b *buffer.Buffer, ver StreamVersion) (*SkeletonDescription, error) {
	name, err := b.ReadString(0)
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read skeleton description name")
	}
	id, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read skeleton description id")
	}
	rbCount, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read skeleton description rigid body count")
	}
	rbs := make([]RigidBodyDescription, rbCount)
	for i := range rbs {
		rb, err := unpackRigidBodyDescription(b, ver)
		if err != nil {
			return nil, err
		}
		rbs[i] = *rb
	}
	return &SkeletonDescription{Name: name, ID: id, RigidBodies: rbs}, nil
}

// unpackForcePlateDescription returns (nil, nil) when the server sent
// an empty/absent entry, matching original_source's `if fp:` guard
// that skips force plates with no real data.
func unpackForcePlateDescription(b *buffer.Buffer) (*ForcePlateDescription, error) {
	d := &ForcePlateDescription{}

	id, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read force plate description id")
	}
	d.ID = id

	serial, err := b.ReadString(128)
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read force plate description serial number")
	}
	d.SerialNumber = serial

	width, err := b.ReadFloat()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read force plate description width")
	}
	d.Width = width

	length, err := b.ReadFloat()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read force plate description length")
	}
	d.Length = length

	origin, err := b.ReadVector()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read force plate description origin")
	}
	d.Origin = origin

	for i := range d.CalMatrix {
		row, err := b.ReadMatrixRow()
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read force plate description cal matrix row")
		}
		d.CalMatrix[i] = row
	}

	for i := range d.Corners {
		for j := range d.Corners[i] {
			v, err := b.ReadFloat()
			if err != nil {
				return nil, errs.Wrap(errs.Malformed, err, "read force plate description corner")
			}
			d.Corners[i][j] = v
		}
	}

	plateType, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read force plate description plate type")
	}
	d.PlateType = plateType

	channelType, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read force plate description channel data type")
	}
	d.ChannelDataType = channelType

	channelCount, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read force plate description channel count")
	}
	names := make([]string, channelCount)
	for i := range names {
		n, err := b.ReadString(0)
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read force plate description channel name")
		}
		names[i] = n
	}
	d.ChannelNames = names

	if d.SerialNumber == "" && channelCount == 0 {
		return nil, nil
	}
	return d, nil
}

// unpackDeviceDescription returns (nil, nil) for an empty entry,
// mirroring original_source's `if dd:` guard.
func unpackDeviceDescription(b *buffer.Buffer) (*DeviceDescription, error) {
	d := &DeviceDescription{}

	id, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read device description id")
	}
	d.ID = id

	name, err := b.ReadString(0)
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read device description name")
	}
	d.Name = name

	serial, err := b.ReadString(0)
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read device description serial number")
	}
	d.SerialNumber = serial

	devType, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read device description type")
	}
	d.DeviceType = devType

	channelCount, err := b.ReadInt()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read device description channel count")
	}
	names := make([]string, channelCount)
	for i := range names {
		n, err := b.ReadString(0)
		if err != nil {
			return nil, errs.Wrap(errs.Malformed, err, "read device description channel name")
		}
		names[i] = n
	}
	d.ChannelNames = names

	if d.Name == "" && channelCount == 0 {
		return nil, nil
	}
	return d, nil
}

func unpackCameraDescription(b *buffer.Buffer) (*CameraDescription, error) {
	name, err := b.ReadString(0)
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read camera description name")
	}
	pos, err := b.ReadVector()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read camera description position")
	}
	quat, err := b.ReadQuaternion()
	if err != nil {
		return nil, errs.Wrap(errs.Malformed, err, "read camera description orientation")
	}
	return &CameraDescription{Name: name, Position: pos, Orientation: quat}, nil
}
