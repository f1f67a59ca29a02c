package efi

import (
	"encoding/binary"
	"fmt"

	"github.com/ccoveille/go-safecast"
)

// Load option attributes
const (
	LOAD_OPTION_ACTIVE          = 0x00000001
	LOAD_OPTION_FORCE_RECONNECT = 0x00000002
	LOAD_OPTION_HIDDEN          = 0x00000008
	LOAD_OPTION_CATEGORY        = 0x00001f00
	LOAD_OPTION_CATEGORY_BOOT   = 0x00000000
	LOAD_OPTION_CATEGORY_APP    = 0x00000100
)

// loadOptionHeaderSize is Attributes(4) + FilePathListLength(2).
const loadOptionHeaderSize = 6

// LoadOption is the payload of a BootXXXX variable.
//
//	UINT32 Attributes;
//	UINT16 FilePathListLength;
//	CHAR16 Description[];
//	EFI_DEVICE_PATH_PROTOCOL FilePathList[];
//	UINT8 OptionalData[];
type LoadOption struct {
	Attributes         uint32
	FilePathListLength uint16
	Description        string
	// FilePathList is everything after the description, optional data
	// included. The device path walk stops at the end node.
	FilePathList []byte
}

// BootVariableName returns the BootXXXX name for a boot option index.
func BootVariableName(index uint16) string {
	return fmt.Sprintf("Boot%04X", index)
}

// ParseLoadOption splits a BootXXXX payload. The description is located by
// scanning for the UTF-16 terminator two bytes at a time; a payload without
// one, or with nothing after it, yields ErrNotFound.
func ParseLoadOption(data []byte) (*LoadOption, error) {
	if len(data) < loadOptionHeaderSize {
		return nil, fmt.Errorf("%w: load option is %d bytes, need at least %d",
			ErrInvalidData, len(data), loadOptionHeaderSize)
	}

	opt := &LoadOption{
		Attributes:         binary.LittleEndian.Uint32(data[0:4]),
		FilePathListLength: binary.LittleEndian.Uint16(data[4:6]),
	}

	end := -1
	for off := loadOptionHeaderSize; off+1 < len(data); off += 2 {
		if data[off] == 0 && data[off+1] == 0 {
			end = off + 2
			break
		}
	}
	if end < 0 {
		return nil, fmt.Errorf("%w: unterminated load option description", ErrNotFound)
	}

	desc, err := DecodeASCII16(data[loadOptionHeaderSize:end])
	if err != nil {
		return nil, fmt.Errorf("decoding load option description: %w", err)
	}
	opt.Description = desc

	if end >= len(data) {
		return nil, fmt.Errorf("%w: load option %q has no device path", ErrNotFound, desc)
	}
	opt.FilePathList = data[end:]

	return opt, nil
}

// Active reports whether the firmware may boot this option.
func (o *LoadOption) Active() bool {
	return o.Attributes&LOAD_OPTION_ACTIVE != 0
}

// Category returns the category bits of the attributes.
func (o *LoadOption) Category() uint32 {
	return o.Attributes & LOAD_OPTION_CATEGORY
}

// Bytes encodes the option. FilePathListLength is recomputed from
// FilePathList.
func (o *LoadOption) Bytes() ([]byte, error) {
	pathLen, err := safecast.ToUint16(len(o.FilePathList))
	if err != nil {
		return nil, fmt.Errorf("load option %q: file path list: %w", o.Description, err)
	}
	buf := binary.LittleEndian.AppendUint32(nil, o.Attributes)
	buf = binary.LittleEndian.AppendUint16(buf, pathLen)
	buf = append(buf, EncodeUCS16(o.Description)...)
	return append(buf, o.FilePathList...), nil
}

// NewBootEntry builds an active boot option pointing at dp.
func NewBootEntry(description string, dp *DevicePath) (*LoadOption, error) {
	path, err := dp.Bytes()
	if err != nil {
		return nil, err
	}
	return &LoadOption{
		Attributes:   LOAD_OPTION_ACTIVE | LOAD_OPTION_CATEGORY_BOOT,
		Description:  description,
		FilePathList: path,
	}, nil
}
