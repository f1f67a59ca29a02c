package efi

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/go-logr/logr"
)

// DeviceType represents the type of EFI device path element
type DeviceType uint8

const (
	DevTypeHardware DeviceType = 0x01
	DevTypeAcpi     DeviceType = 0x02
	DevTypeMessage  DeviceType = 0x03
	DevTypeMedia    DeviceType = 0x04
	DevTypeBIOS     DeviceType = 0x05
	DevTypeEnd      DeviceType = 0x7f
)

// DeviceSubType represents the subtype of EFI device path element
type DeviceSubType uint8

// Hardware subtypes
const (
	DevSubTypePCI      DeviceSubType = 0x01
	DevSubTypeVendorHW DeviceSubType = 0x04
)

// ACPI subtypes
const (
	DevSubTypeACPI DeviceSubType = 0x01
)

// Message subtypes
const (
	DevSubTypeSCSI DeviceSubType = 0x02
	DevSubTypeUSB  DeviceSubType = 0x05
	DevSubTypeMAC  DeviceSubType = 0x0b
	DevSubTypeIPv4 DeviceSubType = 0x0c
	DevSubTypeIPv6 DeviceSubType = 0x0d
	DevSubTypeSATA DeviceSubType = 0x12
	DevSubTypeURI  DeviceSubType = 0x18
)

// Media subtypes
const (
	DevSubTypePartition DeviceSubType = 0x01
	DevSubTypeFilePath  DeviceSubType = 0x04
)

// End subtypes
const (
	DevSubTypeEndInstance DeviceSubType = 0x01
	DevSubTypeEndEntire   DeviceSubType = 0xff
)

const (
	// nodeHeaderSize is type(1) + subtype(1) + length(2).
	nodeHeaderSize = 4

	// A hard drive node is header(4) + partition number(4) + start LBA(8) +
	// size LBA(8) + signature(16) + MBR type(1) + signature type(1).
	hardDriveNodeMinLen    = 42
	hardDriveSignatureOffs = 24

	// Offset of RemoteIpAddress inside an IPv4 node body.
	ipv4RemoteOffs = 4

	// PartUUIDDir is where udev links partitions by their GPT unique GUID.
	PartUUIDDir = "/dev/disk/by-partuuid/"
)

// DevicePathElem is one node of a device path. For walked paths Data is a
// sub-slice of the walked buffer and holds the node body without the
// four byte header.
type DevicePathElem struct {
	Devtype DeviceType
	Subtype DeviceSubType
	Data    []byte
}

// field returns n bytes of the body at off, or false if they are not there.
func (dpe DevicePathElem) field(off, n int) ([]byte, bool) {
	if off < 0 || n < 0 || off > len(dpe.Data) || len(dpe.Data)-off < n {
		return nil, false
	}
	return dpe.Data[off : off+n], true
}

func (dpe DevicePathElem) size() int {
	return len(dpe.Data) + nodeHeaderSize
}

func (dpe DevicePathElem) fmtHW() string {
	if dpe.Subtype == DevSubTypePCI {
		if b, ok := dpe.field(0, 2); ok {
			return fmt.Sprintf("Pci(0x%x,0x%x)", b[1], b[0])
		}
	}
	if dpe.Subtype == DevSubTypeVendorHW {
		if g, err := GUIDFromBytes(dpe.Data, 0); err == nil {
			return fmt.Sprintf("VenHw(%s)", g)
		}
	}
	return fmt.Sprintf("HW(subtype=0x%x)", uint8(dpe.Subtype))
}

func (dpe DevicePathElem) fmtACPI() string {
	if dpe.Subtype == DevSubTypeACPI {
		if b, ok := dpe.field(0, 8); ok {
			hid := binary.LittleEndian.Uint32(b[0:4])
			uid := binary.LittleEndian.Uint32(b[4:8])
			if hid == 0x0a0341d0 {
				return fmt.Sprintf("PciRoot(0x%x)", uid)
			}
			return fmt.Sprintf("Acpi(0x%x,0x%x)", hid, uid)
		}
	}
	return fmt.Sprintf("Acpi(subtype=0x%x)", uint8(dpe.Subtype))
}

func (dpe DevicePathElem) fmtMsg() string {
	switch dpe.Subtype {
	case DevSubTypeSCSI:
		if b, ok := dpe.field(0, 4); ok {
			return fmt.Sprintf("Scsi(0x%x,0x%x)",
				binary.LittleEndian.Uint16(b[0:2]), binary.LittleEndian.Uint16(b[2:4]))
		}
	case DevSubTypeUSB:
		if b, ok := dpe.field(0, 2); ok {
			return fmt.Sprintf("USB(0x%x,0x%x)", b[0], b[1])
		}
	case DevSubTypeMAC:
		if b, ok := dpe.field(0, 6); ok {
			return fmt.Sprintf("MAC(%s)", net.HardwareAddr(b))
		}
	case DevSubTypeIPv4:
		if b, ok := dpe.field(0, 8); ok {
			local := netip.AddrFrom4([4]byte(b[0:4]))
			remote := netip.AddrFrom4([4]byte(b[4:8]))
			return fmt.Sprintf("IPv4(%s,%s)", remote, local)
		}
	case DevSubTypeIPv6:
		return "IPv6()"
	case DevSubTypeSATA:
		if b, ok := dpe.field(0, 2); ok {
			return fmt.Sprintf("Sata(0x%x)", binary.LittleEndian.Uint16(b))
		}
	case DevSubTypeURI:
		if s, err := decodeURI(dpe.Data); err == nil {
			return fmt.Sprintf("Uri(%s)", s)
		}
	}
	return fmt.Sprintf("Msg(subtype=0x%x)", uint8(dpe.Subtype))
}

func (dpe DevicePathElem) fmtMedia() string {
	switch dpe.Subtype {
	case DevSubTypePartition:
		if b, ok := dpe.field(0, 4); ok {
			nr := binary.LittleEndian.Uint32(b)
			if g, err := GUIDFromBytes(dpe.Data, hardDriveSignatureOffs-nodeHeaderSize); err == nil {
				return fmt.Sprintf("HD(%d,GPT,%s)", nr, g)
			}
			return fmt.Sprintf("HD(%d)", nr)
		}
	case DevSubTypeFilePath:
		if s, err := DecodeASCII16(dpe.Data); err == nil {
			return s
		}
	}
	return fmt.Sprintf("Media(subtype=0x%x)", uint8(dpe.Subtype))
}

// String renders the node in a form close to the UEFI text representation.
func (dpe DevicePathElem) String() string {
	switch dpe.Devtype {
	case DevTypeHardware:
		return dpe.fmtHW()
	case DevTypeAcpi:
		return dpe.fmtACPI()
	case DevTypeMessage:
		return dpe.fmtMsg()
	case DevTypeMedia:
		return dpe.fmtMedia()
	case DevTypeEnd:
		if dpe.Subtype == DevSubTypeEndInstance {
			return ","
		}
		return ""
	}
	return fmt.Sprintf("Path(type=0x%x,subtype=0x%x)", uint8(dpe.Devtype), uint8(dpe.Subtype))
}

// PathInfo is what a device path walk found.
type PathInfo struct {
	URL    string
	Device string
	Image  string
	PXE    bool
}

func (pi *PathInfo) empty() bool {
	return pi.URL == "" && pi.Device == "" && pi.Image == "" && !pi.PXE
}

// decodeURI reads a URI node body. The UEFI spec defines it as CHAR8, but
// some firmware stores UTF-16LE. The body is CHAR8 only when both leading
// bytes are non-zero; anything else goes through DecodeASCII16 so code
// units above 0x7f are reported.
func decodeURI(body []byte) (string, error) {
	if len(body) >= 2 && body[0] != 0 && body[1] != 0 {
		return decodeASCII8(body)
	}
	return DecodeASCII16(body)
}

// WalkDevicePath walks the packed device path nodes in data and collects
// the boot URL, partition device, image path and PXE indicators. Malformed
// or truncated nodes end the walk without an error; whatever was found up
// to that point is returned. ErrNotFound is returned only when nothing was
// found at all.
func WalkDevicePath(data []byte, log logr.Logger) (*PathInfo, error) {
	info := &PathInfo{}
	limit := len(data)

	for offset := 0; offset < limit; {
		if limit-offset < nodeHeaderSize {
			log.V(1).Info("truncated device path node header", "offset", offset, "limit", limit)
			break
		}

		elem := DevicePathElem{
			Devtype: DeviceType(data[offset]),
			Subtype: DeviceSubType(data[offset+1]),
		}
		length := int(binary.LittleEndian.Uint16(data[offset+2 : offset+4]))

		if elem.Devtype == DevTypeEnd && elem.Subtype == DevSubTypeEndEntire {
			break
		}
		if length < nodeHeaderSize {
			log.V(1).Info("device path node length too short",
				"type", uint8(elem.Devtype), "subtype", uint8(elem.Subtype), "length", length)
			break
		}
		if length > limit-offset {
			log.V(1).Info("device path node exceeds buffer",
				"type", uint8(elem.Devtype), "subtype", uint8(elem.Subtype),
				"length", length, "offset", offset, "limit", limit)
			break
		}
		elem.Data = data[offset+nodeHeaderSize : offset+length]

		if err := info.visit(elem, log); err != nil {
			return nil, err
		}

		offset += length
	}

	if info.empty() {
		return nil, fmt.Errorf("%w: no boot source in device path", ErrNotFound)
	}
	return info, nil
}

func (pi *PathInfo) visit(elem DevicePathElem, log logr.Logger) error {
	switch {
	case elem.Devtype == DevTypeMedia && elem.Subtype == DevSubTypePartition:
		if elem.size() < hardDriveNodeMinLen {
			log.V(1).Info("hard drive node too short for a signature", "length", elem.size())
			return nil
		}
		sig, err := GUIDFromBytes(elem.Data, hardDriveSignatureOffs-nodeHeaderSize)
		if err != nil {
			return err
		}
		pi.Device = PartUUIDDir + sig.String()
		log.V(1).Info("found partition", "device", pi.Device)

	case elem.Devtype == DevTypeMedia && elem.Subtype == DevSubTypeFilePath:
		img, err := DecodeASCII16(elem.Data)
		if err != nil {
			return fmt.Errorf("decoding file path node: %w", err)
		}
		pi.Image = img
		log.V(1).Info("found file path", "image", img)

	case elem.Devtype == DevTypeMessage && elem.Subtype == DevSubTypeURI:
		uri, err := decodeURI(elem.Data)
		if err != nil {
			return fmt.Errorf("decoding URI node: %w", err)
		}
		pi.URL = uri
		log.V(1).Info("found URI", "url", uri)

	case elem.Devtype == DevTypeMessage && elem.Subtype == DevSubTypeMAC:
		pi.PXE = true
		log.V(1).Info("found MAC address node", "node", elem.String())

	case elem.Devtype == DevTypeMessage && elem.Subtype == DevSubTypeIPv4:
		remote, ok := elem.field(ipv4RemoteOffs, 4)
		if !ok {
			log.V(1).Info("IPv4 node too short for a remote address", "length", elem.size())
			return nil
		}
		addr := netip.AddrFrom4([4]byte(remote))
		log.V(1).Info("found IPv4 node", "remote", addr.String())
		// An unspecified server address is what PXE firmware records.
		if addr.IsUnspecified() {
			pi.PXE = true
		}

	case elem.Devtype == DevTypeEnd:
		log.V(1).Info("end of device path instance", "subtype", uint8(elem.Subtype))

	default:
		log.V(1).Info("skipping device path node", "node", elem.String())
	}
	return nil
}

// NodeStrings renders every node of a device path, for diagnostics. It
// shares the bounds rules of WalkDevicePath.
func NodeStrings(data []byte) []string {
	var out []string
	for offset := 0; len(data)-offset >= nodeHeaderSize; {
		elem := DevicePathElem{
			Devtype: DeviceType(data[offset]),
			Subtype: DeviceSubType(data[offset+1]),
		}
		length := int(binary.LittleEndian.Uint16(data[offset+2 : offset+4]))
		if elem.Devtype == DevTypeEnd && elem.Subtype == DevSubTypeEndEntire {
			break
		}
		if length < nodeHeaderSize || length > len(data)-offset {
			out = append(out, "<truncated>")
			break
		}
		elem.Data = data[offset+nodeHeaderSize : offset+length]
		out = append(out, elem.String())
		offset += length
	}
	return out
}

// FormatDevicePath joins NodeStrings with '/'.
func FormatDevicePath(data []byte) string {
	return strings.ReplaceAll(strings.Join(NodeStrings(data), "/"), "/,/", ",")
}
