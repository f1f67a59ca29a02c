package varstore

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/bmcpi/efiboot/internal/firmware/efi"
	"github.com/go-logr/logr"
	"github.com/spf13/afero"
)

// FfsGUID marks firmware volumes holding a file system, which are skipped
// while looking for the variable volume.
const FfsGUID = "8c8ce578-8a3d-4f1c-9935-896185c32dd3"

const (
	fvSignature       = 0x4856465f // "_FVH"
	fvGUIDOffs        = 16
	fvLengthOffs      = 32
	fvSignatureOffs   = 40
	fvHeaderLenOffs   = 48
	fvRevisionOffs    = 55
	fvBlockMapOffs    = 56
	fvMinHeaderSize   = 64
	fvScanStep        = 1024
	storeHeaderSize   = 28
	storeFormatReady  = 0x5a
	storeStateHealthy = 0xfe

	varStartID      = 0x55aa
	varStateAdded   = 0x3f
	varHeaderSize   = 60
	varStateOffs    = 2
	varAttrOffs     = 4
	varCountOffs    = 8
	varTimeOffs     = 16
	varPkIdxOffs    = 32
	varNameSizeOffs = 36
	varDataSizeOffs = 40
	varGUIDOffs     = 44
)

// Edk2Store is a read-only view of the authenticated variable store of an
// EDK2 firmware image.
type Edk2Store struct {
	filename string
	filedata []byte
	start    int
	end      int
	vars     map[string]*Variable
	log      logr.Logger
}

// Open reads and indexes filename. Images without a variable volume fail
// with efi.ErrUnsupported, damaged ones with efi.ErrInvalidData.
func Open(fsys afero.Fs, filename string, log logr.Logger) (*Edk2Store, error) {
	log.V(1).Info("reading raw edk2 varstore", "file", filename)
	data, err := afero.ReadFile(fsys, filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", efi.ErrIO, err)
	}
	return Parse(filename, data, log)
}

// Parse indexes an image already held in memory. name is only used in
// messages.
func Parse(name string, data []byte, log logr.Logger) (*Edk2Store, error) {
	vs := &Edk2Store{filename: name, filedata: data, log: log}
	if err := vs.parseVolume(); err != nil {
		return nil, err
	}
	if err := vs.parseVarList(); err != nil {
		return nil, err
	}
	return vs, nil
}

func (vs *Edk2Store) u16(off int) (uint16, bool) {
	if off < 0 || off+2 > len(vs.filedata) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(vs.filedata[off:]), true
}

func (vs *Edk2Store) u32(off int) (uint32, bool) {
	if off < 0 || off+4 > len(vs.filedata) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(vs.filedata[off:]), true
}

func (vs *Edk2Store) u64(off int) (uint64, bool) {
	if off < 0 || off+8 > len(vs.filedata) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(vs.filedata[off:]), true
}

func (vs *Edk2Store) guidAt(off int) string {
	g, err := efi.GUIDFromBytes(vs.filedata, off)
	if err != nil {
		return ""
	}
	return g.String()
}

func (vs *Edk2Store) findNvData() int {
	offset := 0
	for offset+fvMinHeaderSize < len(vs.filedata) {
		switch vs.guidAt(offset + fvGUIDOffs) {
		case efi.NvDataGUID:
			return offset
		case FfsGUID:
			tlen, ok := vs.u64(offset + fvLengthOffs)
			if !ok || tlen == 0 || tlen > uint64(len(vs.filedata)-offset) {
				return -1
			}
			offset += int(tlen)
			continue
		}
		offset += fvScanStep
	}
	return -1
}

func (vs *Edk2Store) parseVolume() error {
	offset := vs.findNvData()
	if offset < 0 {
		return fmt.Errorf("%w: %s: varstore not found", efi.ErrUnsupported, vs.filename)
	}

	vlen, _ := vs.u64(offset + fvLengthOffs)
	sig, _ := vs.u32(offset + fvSignatureOffs)
	hlen, _ := vs.u16(offset + fvHeaderLenOffs)
	blocks, _ := vs.u32(offset + fvBlockMapOffs)
	blksize, _ := vs.u32(offset + fvBlockMapOffs + 4)

	vs.log.V(1).Info("found variable volume",
		"offset", offset, "vlen", vlen, "rev", vs.filedata[offset+fvRevisionOffs],
		"blocks", blocks, "blksize", blksize)

	if sig != fvSignature {
		return fmt.Errorf("%w: %s: not a firmware volume", efi.ErrInvalidData, vs.filename)
	}

	return vs.parseVarstore(offset + int(hlen))
}

func (vs *Edk2Store) parseVarstore(start int) error {
	if start < 0 || start+storeHeaderSize > len(vs.filedata) {
		return fmt.Errorf("%w: %s: truncated varstore header", efi.ErrInvalidData, vs.filename)
	}

	guid := vs.guidAt(start)
	size, _ := vs.u32(start + 16)
	storefmt := vs.filedata[start+20]
	state := vs.filedata[start+21]

	vs.log.V(1).Info("varstore header",
		"guid", guid, "size", size, "format", storefmt, "state", state)

	if guid != efi.AuthVarsGUID {
		return fmt.Errorf("%w: %s: unknown varstore guid %s", efi.ErrUnsupported, vs.filename, guid)
	}
	if storefmt != storeFormatReady {
		return fmt.Errorf("%w: %s: unknown varstore format 0x%x", efi.ErrInvalidData, vs.filename, storefmt)
	}
	if state != storeStateHealthy {
		return fmt.Errorf("%w: %s: unknown varstore state 0x%x", efi.ErrInvalidData, vs.filename, state)
	}

	vs.start = start + storeHeaderSize
	vs.end = start + int(size)
	if vs.end > len(vs.filedata) {
		return fmt.Errorf("%w: %s: varstore size 0x%x exceeds image", efi.ErrInvalidData, vs.filename, size)
	}
	vs.log.V(1).Info("var store range", "start", vs.start, "end", vs.end)
	return nil
}

func (vs *Edk2Store) parseVarList() error {
	vs.vars = make(map[string]*Variable)

	pos := vs.start
	for pos+varHeaderSize <= vs.end {
		magic, _ := vs.u16(pos)
		if magic != varStartID {
			break
		}
		state := vs.filedata[pos+varStateOffs]
		attr, _ := vs.u32(pos + varAttrOffs)
		count, _ := vs.u64(pos + varCountOffs)
		pk, _ := vs.u32(pos + varPkIdxOffs)
		nsize, _ := vs.u32(pos + varNameSizeOffs)
		dsize, _ := vs.u32(pos + varDataSizeOffs)

		nameStart := pos + varHeaderSize
		dataStart := nameStart + int(nsize)
		dataEnd := dataStart + int(dsize)
		if int(nsize) > vs.end || int(dsize) > vs.end || dataEnd > vs.end {
			return fmt.Errorf("%w: %s: variable at 0x%x overruns the store", efi.ErrInvalidData, vs.filename, pos)
		}

		if state == varStateAdded {
			name, err := efi.DecodeASCII16(vs.filedata[nameStart:dataStart])
			if err != nil {
				return fmt.Errorf("%s: variable name at 0x%x: %w", vs.filename, pos, err)
			}
			guid, err := efi.GUIDFromBytes(vs.filedata, pos+varGUIDOffs)
			if err != nil {
				return err
			}
			v := &Variable{
				Name:  name,
				GUID:  guid,
				Attr:  attr,
				Count: count,
				PkIdx: pk,
				Time:  parseEfiTime(vs.filedata[pos+varTimeOffs : pos+varTimeOffs+efiTimeSize]),
				Data:  vs.filedata[dataStart:dataEnd],
			}
			vs.vars[v.Key()] = v
		}

		pos = (dataEnd + 3) &^ 3
	}

	vs.log.V(1).Info("indexed varstore", "file", vs.filename, "variables", len(vs.vars))
	return nil
}

// Available always succeeds; a store that opened has variables to offer.
func (vs *Edk2Store) Available() error {
	return nil
}

// Read returns a copy of the variable's data.
func (vs *Edk2Store) Read(name, guid string) ([]byte, error) {
	v, ok := vs.vars[variableKey(name, guid)]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", efi.ErrNotFound, variableKey(name, guid), vs.filename)
	}
	return slices.Clone(v.Data), nil
}

func (vs *Edk2Store) ReadString(name, guid string) (string, error) {
	data, err := vs.Read(name, guid)
	if err != nil {
		return "", err
	}
	str, err := efi.DecodeASCII16(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", variableKey(name, guid), err)
	}
	return str, nil
}

// Variable returns the full record of a variable.
func (vs *Edk2Store) Variable(name, guid string) (*Variable, bool) {
	v, ok := vs.vars[variableKey(name, guid)]
	return v, ok
}

// Names lists the Name-GUID keys of all live variables, sorted.
func (vs *Edk2Store) Names() []string {
	keys := make([]string, 0, len(vs.vars))
	for k := range vs.vars {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
