// Package varstore reads EFI variables out of EDK2 firmware images, the
// *_VARS.fd files virtual machines keep their NVRAM in.
package varstore

import (
	"encoding/binary"
	"time"

	"github.com/bmcpi/efiboot/internal/firmware/efi"
)

// Variable is one live variable record of a store.
type Variable struct {
	Name  string
	GUID  efi.GUID
	Attr  uint32
	Count uint64
	PkIdx uint32
	Time  time.Time
	Data  []byte
}

// Key is the efivarfs style file name of the variable.
func (v *Variable) Key() string {
	return variableKey(v.Name, v.GUID.String())
}

func variableKey(name, guid string) string {
	return name + "-" + guid
}

// efiTimeSize is the size of an EFI_TIME structure.
const efiTimeSize = 16

// parseEfiTime decodes an EFI_TIME. Unset timestamps, which EDK2 writes as
// all zeros, give the zero time.
//
//	UINT16 Year; UINT8 Month, Day, Hour, Minute, Second, Pad1;
//	UINT32 Nanosecond; INT16 TimeZone; UINT8 Daylight, Pad2;
func parseEfiTime(b []byte) time.Time {
	if len(b) < efiTimeSize {
		return time.Time{}
	}
	year := int(binary.LittleEndian.Uint16(b[0:2]))
	if year == 0 {
		return time.Time{}
	}
	return time.Date(year, time.Month(b[2]), int(b[3]), int(b[4]), int(b[5]), int(b[6]),
		int(binary.LittleEndian.Uint32(b[8:12])), time.UTC)
}
