package efi

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"
)

// DecodeASCII16 converts a UTF-16LE buffer to a string. Firmware strings
// read here are ASCII by convention, so any code unit of 128 or above is
// rejected with ErrOutOfRange. Decoding stops at the first zero code unit;
// a buffer without one is decoded in full. DOS path separators are turned
// into '/'.
func DecodeASCII16(data []byte) (string, error) {
	if len(data)%2 != 0 {
		return "", fmt.Errorf("%w: odd UTF-16 length %d", ErrInvalidData, len(data))
	}

	var sb strings.Builder
	sb.Grow(len(data) / 2)
	for i := 0; i+1 < len(data); i += 2 {
		c := binary.LittleEndian.Uint16(data[i : i+2])
		switch {
		case c == 0:
			return sb.String(), nil
		case c >= 0x80:
			return "", fmt.Errorf("%w: code unit 0x%04x at offset %d", ErrOutOfRange, c, i)
		case c == '\\':
			sb.WriteByte('/')
		default:
			sb.WriteByte(byte(c))
		}
	}
	return sb.String(), nil
}

// decodeASCII8 handles CHAR8 strings, which the UEFI spec uses for URI nodes.
func decodeASCII8(data []byte) (string, error) {
	var sb strings.Builder
	sb.Grow(len(data))
	for i, c := range data {
		switch {
		case c == 0:
			return sb.String(), nil
		case c >= 0x80:
			return "", fmt.Errorf("%w: byte 0x%02x at offset %d", ErrOutOfRange, c, i)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}

// EncodeUCS16 converts a string to a zero terminated UTF-16LE buffer.
func EncodeUCS16(s string) []byte {
	codepoints := utf16.Encode([]rune(s))
	buf := make([]byte, 0, 2*len(codepoints)+2)
	for _, cp := range codepoints {
		buf = binary.LittleEndian.AppendUint16(buf, cp)
	}
	return append(buf, 0, 0)
}
