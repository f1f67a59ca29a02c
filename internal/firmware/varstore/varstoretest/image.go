// Package varstoretest assembles minimal EDK2 variable store images for
// tests.
package varstoretest

import (
	"encoding/binary"
	"testing"

	"github.com/bmcpi/efiboot/internal/firmware/efi"
	"github.com/stretchr/testify/require"
)

const (
	// HeaderLen is the firmware volume header with a one entry block map.
	HeaderLen = 72
	// StoreSize is the size of the variable store including its header.
	StoreSize = 0x2000

	stateAdded   = 0x3f
	stateDeleted = 0x3c
)

// Var is a variable record to place in an image.
type Var struct {
	Name    string
	GUID    string
	Attr    uint32
	Data    []byte
	Deleted bool
	// Year, when set, is written to the record's timestamp.
	Year    uint16
	Count   uint64
	PkIdx   uint32
}

// Image is an EDK2 NV variable volume under construction.
type Image struct {
	t    testing.TB
	vars []Var
}

func New(t testing.TB) *Image {
	return &Image{t: t}
}

func (img *Image) Add(v Var) *Image {
	img.vars = append(img.vars, v)
	return img
}

// Set adds a live variable with the default attributes.
func (img *Image) Set(name, guid string, data []byte) *Image {
	return img.Add(Var{Name: name, GUID: guid, Attr: 0x07, Data: data})
}

// SetUint16 adds a little-endian UINT16 array variable.
func (img *Image) SetUint16(name, guid string, values ...uint16) *Image {
	var data []byte
	for _, v := range values {
		data = binary.LittleEndian.AppendUint16(data, v)
	}
	return img.Set(name, guid, data)
}

// SetBootEntry adds an active BootXXXX load option.
func (img *Image) SetBootEntry(index uint16, description string, dp *efi.DevicePath) *Image {
	img.t.Helper()
	opt, err := efi.NewBootEntry(description, dp)
	require.NoError(img.t, err)
	data, err := opt.Bytes()
	require.NoError(img.t, err)
	return img.Set(efi.BootVariableName(index), efi.EfiGlobalVariableGUID, data)
}

// Bytes renders the volume. The layout is a firmware volume header, the
// authenticated variable store header and the packed variable records,
// padded with 0xff like erased flash.
func (img *Image) Bytes() []byte {
	img.t.Helper()

	size := HeaderLen + StoreSize
	buf := make([]byte, 0, size)

	// firmware volume header
	buf = append(buf, make([]byte, 16)...)
	buf = append(buf, efi.MustParseGUID(efi.NvDataGUID).BytesLE()...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(size))
	buf = binary.LittleEndian.AppendUint32(buf, 0x4856465f)
	buf = binary.LittleEndian.AppendUint32(buf, 0x0004feff)
	buf = binary.LittleEndian.AppendUint16(buf, HeaderLen)
	buf = binary.LittleEndian.AppendUint16(buf, 0) // checksum
	buf = binary.LittleEndian.AppendUint16(buf, 0) // ext header offset
	buf = append(buf, 0, 2)                        // reserved, revision
	buf = binary.LittleEndian.AppendUint32(buf, 2)
	buf = binary.LittleEndian.AppendUint32(buf, StoreSize/2)
	buf = binary.LittleEndian.AppendUint64(buf, 0)

	// variable store header
	buf = append(buf, efi.MustParseGUID(efi.AuthVarsGUID).BytesLE()...)
	buf = binary.LittleEndian.AppendUint32(buf, StoreSize)
	buf = append(buf, 0x5a, 0xfe)
	buf = append(buf, make([]byte, 6)...)

	for _, v := range img.vars {
		buf = appendVar(buf, v)
	}
	require.LessOrEqual(img.t, len(buf), size, "variables do not fit the store")

	for len(buf) < size {
		buf = append(buf, 0xff)
	}
	return buf
}

func appendVar(buf []byte, v Var) []byte {
	name := efi.EncodeUCS16(v.Name)
	state := byte(stateAdded)
	if v.Deleted {
		state = stateDeleted
	}

	buf = binary.LittleEndian.AppendUint16(buf, 0x55aa)
	buf = append(buf, state, 0)
	buf = binary.LittleEndian.AppendUint32(buf, v.Attr)
	buf = binary.LittleEndian.AppendUint64(buf, v.Count)

	ts := make([]byte, 16)
	if v.Year != 0 {
		binary.LittleEndian.PutUint16(ts[0:2], v.Year)
		ts[2], ts[3] = 1, 1
	}
	buf = append(buf, ts...)

	buf = binary.LittleEndian.AppendUint32(buf, v.PkIdx)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(name)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v.Data)))
	buf = append(buf, efi.MustParseGUID(v.GUID).BytesLE()...)
	buf = append(buf, name...)
	buf = append(buf, v.Data...)
	for len(buf)%4 != 0 {
		buf = append(buf, 0xff)
	}
	return buf
}
