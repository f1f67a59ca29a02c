// Package efivarstest builds in-memory efivarfs trees for tests.
package efivarstest

import (
	"encoding/binary"
	"testing"

	"github.com/bmcpi/efiboot/internal/efivars"
	"github.com/bmcpi/efiboot/internal/firmware/efi"
	"github.com/go-logr/logr"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// Attributes written in front of every fixture variable:
// non-volatile, boot service and runtime access.
var Attributes = []byte{0x07, 0x00, 0x00, 0x00}

type Fixture struct {
	Fs   afero.Fs
	Root string
	t    testing.TB
}

// New returns a fixture with an empty efivars directory.
func New(t testing.TB) *Fixture {
	t.Helper()
	f := &Fixture{Fs: afero.NewMemMapFs(), Root: efivars.DefaultRoot, t: t}
	require.NoError(t, f.Fs.MkdirAll(f.Root, 0o755))
	return f
}

// Store returns a reader on the fixture.
func (f *Fixture) Store(log logr.Logger) *efivars.Store {
	return efivars.New(f.Fs, f.Root, log)
}

// SetRaw writes content as-is, attribute bytes included.
func (f *Fixture) SetRaw(name, guid string, content []byte) {
	f.t.Helper()
	s := efivars.New(f.Fs, f.Root, logr.Discard())
	require.NoError(f.t, afero.WriteFile(f.Fs, s.Path(name, guid), content, 0o644))
}

// Set writes a variable with payload data.
func (f *Fixture) Set(name, guid string, data []byte) {
	f.t.Helper()
	f.SetRaw(name, guid, append(append([]byte{}, Attributes...), data...))
}

func (f *Fixture) SetString(name, guid, value string) {
	f.t.Helper()
	f.Set(name, guid, efi.EncodeUCS16(value))
}

// SetUint16 writes a little-endian UINT16 array, as used by BootCurrent
// and BootOrder.
func (f *Fixture) SetUint16(name, guid string, values ...uint16) {
	f.t.Helper()
	var data []byte
	for _, v := range values {
		data = binary.LittleEndian.AppendUint16(data, v)
	}
	f.Set(name, guid, data)
}

// SetBootEntry writes an active BootXXXX load option.
func (f *Fixture) SetBootEntry(index uint16, description string, dp *efi.DevicePath) {
	f.t.Helper()
	opt, err := efi.NewBootEntry(description, dp)
	require.NoError(f.t, err)
	data, err := opt.Bytes()
	require.NoError(f.t, err)
	f.Set(efi.BootVariableName(index), efi.EfiGlobalVariableGUID, data)
}
