package efi

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Well known vendor GUIDs.
const (
	// EfiGlobalVariableGUID namespaces BootCurrent, BootOrder and BootXXXX.
	EfiGlobalVariableGUID = "8be4df61-93ca-11d2-aa0d-00e098032b8c"
	// SystemdVendorGUID namespaces the Loader* variables set by systemd-boot
	// and systemd-stub.
	SystemdVendorGUID = "4a67b082-0a4c-41cf-b6c7-440b29bb8c4f"
	// NvDataGUID is the file system GUID of an EDK2 NV variable volume.
	NvDataGUID = "fff12b8d-7696-4c8b-a985-2747075b4f50"
	// AuthVarsGUID is the signature of an authenticated variable store.
	AuthVarsGUID = "aaf32c78-947b-439a-a180-2e144ec37792"
)

// GUID holds a GUID in its on-disk (mixed-endian) byte order: the first
// three fields little-endian, the last eight bytes as-is.
type GUID [16]byte

// GUIDFromBytes copies a GUID out of data starting at offset.
func GUIDFromBytes(data []byte, offset int) (GUID, error) {
	var g GUID
	if offset < 0 || len(data)-offset < len(g) {
		return g, fmt.Errorf("%w: need 16 bytes for GUID at offset %d, have %d",
			ErrInvalidData, offset, len(data)-offset)
	}
	copy(g[:], data[offset:offset+len(g)])
	return g, nil
}

// ParseGUID parses the textual 8-4-4-4-12 form.
func ParseGUID(s string) (GUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return GUID{}, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	return guidFromUUID(u), nil
}

// MustParseGUID is like ParseGUID but panics on malformed input. It is
// meant for constants.
func MustParseGUID(s string) GUID {
	g, err := ParseGUID(s)
	if err != nil {
		panic(err)
	}
	return g
}

func guidFromUUID(u uuid.UUID) GUID {
	var g GUID
	binary.LittleEndian.PutUint32(g[0:4], binary.BigEndian.Uint32(u[0:4]))
	binary.LittleEndian.PutUint16(g[4:6], binary.BigEndian.Uint16(u[4:6]))
	binary.LittleEndian.PutUint16(g[6:8], binary.BigEndian.Uint16(u[6:8]))
	copy(g[8:], u[8:])
	return g
}

// UUID returns the GUID in RFC 4122 (big-endian) byte order.
func (g GUID) UUID() uuid.UUID {
	var u uuid.UUID
	binary.BigEndian.PutUint32(u[0:4], binary.LittleEndian.Uint32(g[0:4]))
	binary.BigEndian.PutUint16(u[4:6], binary.LittleEndian.Uint16(g[4:6]))
	binary.BigEndian.PutUint16(u[6:8], binary.LittleEndian.Uint16(g[6:8]))
	copy(u[8:], g[8:])
	return u
}

// String renders the canonical lowercase form.
func (g GUID) String() string {
	return g.UUID().String()
}

// BytesLE returns the on-disk representation.
func (g GUID) BytesLE() []byte {
	b := make([]byte, len(g))
	copy(b, g[:])
	return b
}
