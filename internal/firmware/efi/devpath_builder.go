package efi

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"

	"github.com/ccoveille/go-safecast"
)

// DevicePath assembles a device path node list. It exists for producing
// fixtures; the resolver only ever reads paths.
type DevicePath struct {
	elems []DevicePathElem
}

// NewDevicePath returns an empty path.
func NewDevicePath() *DevicePath {
	return &DevicePath{}
}

func (dp *DevicePath) PCIRoot(uid uint32) *DevicePath {
	data := binary.LittleEndian.AppendUint32(nil, 0x0a0341d0) // PNP0A03
	data = binary.LittleEndian.AppendUint32(data, uid)
	return dp.Append(DevicePathElem{Devtype: DevTypeAcpi, Subtype: DevSubTypeACPI, Data: data})
}

func (dp *DevicePath) PCI(dev, fn uint8) *DevicePath {
	return dp.Append(DevicePathElem{Devtype: DevTypeHardware, Subtype: DevSubTypePCI, Data: []byte{fn, dev}})
}

func (dp *DevicePath) Mac(mac net.HardwareAddr) *DevicePath {
	data := make([]byte, 33) // 32 byte address field + interface type
	copy(data, mac)
	data[32] = 0x01 // ethernet
	return dp.Append(DevicePathElem{Devtype: DevTypeMessage, Subtype: DevSubTypeMAC, Data: data})
}

// IPv4 appends an IPv4 node; an unspecified remote marks a DHCP/PXE path.
func (dp *DevicePath) IPv4(local, remote netip.Addr) *DevicePath {
	data := make([]byte, 23)
	l, r := local.As4(), remote.As4()
	copy(data[0:4], l[:])
	copy(data[ipv4RemoteOffs:ipv4RemoteOffs+4], r[:])
	return dp.Append(DevicePathElem{Devtype: DevTypeMessage, Subtype: DevSubTypeIPv4, Data: data})
}

// URI appends a URI node encoded as UTF-16LE.
func (dp *DevicePath) URI(uri string) *DevicePath {
	return dp.Append(DevicePathElem{Devtype: DevTypeMessage, Subtype: DevSubTypeURI, Data: EncodeUCS16(uri)})
}

func (dp *DevicePath) FilePath(path string) *DevicePath {
	return dp.Append(DevicePathElem{Devtype: DevTypeMedia, Subtype: DevSubTypeFilePath, Data: EncodeUCS16(path)})
}

// GptPartition appends a hard drive node carrying a GPT partition signature.
func (dp *DevicePath) GptPartition(pnr uint32, start, size uint64, sig GUID) *DevicePath {
	data := binary.LittleEndian.AppendUint32(nil, pnr)
	data = binary.LittleEndian.AppendUint64(data, start)
	data = binary.LittleEndian.AppendUint64(data, size)
	data = append(data, sig[:]...)
	data = append(data, 0x02, 0x02) // GPT partition format, GUID signature
	return dp.Append(DevicePathElem{Devtype: DevTypeMedia, Subtype: DevSubTypePartition, Data: data})
}

// EndInstance separates instances of a multi-instance path.
func (dp *DevicePath) EndInstance() *DevicePath {
	return dp.Append(DevicePathElem{Devtype: DevTypeEnd, Subtype: DevSubTypeEndInstance})
}

func (dp *DevicePath) Append(elem DevicePathElem) *DevicePath {
	dp.elems = append(dp.elems, elem)
	return dp
}

// Bytes encodes the path followed by an end-of-path node.
func (dp *DevicePath) Bytes() ([]byte, error) {
	var blob []byte
	for _, elem := range dp.elems {
		b, err := elem.Bytes()
		if err != nil {
			return nil, err
		}
		blob = append(blob, b...)
	}
	term, _ := DevicePathElem{Devtype: DevTypeEnd, Subtype: DevSubTypeEndEntire}.Bytes()
	return append(blob, term...), nil
}

// Bytes encodes a single node including its header.
func (dpe DevicePathElem) Bytes() ([]byte, error) {
	length, err := safecast.ToUint16(dpe.size())
	if err != nil {
		return nil, fmt.Errorf("device path node %s: %w", dpe.String(), err)
	}
	buf := make([]byte, 0, dpe.size())
	buf = append(buf, byte(dpe.Devtype), byte(dpe.Subtype))
	buf = binary.LittleEndian.AppendUint16(buf, length)
	return append(buf, dpe.Data...), nil
}
