package efivars_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bmcpi/efiboot/internal/efivars"
	"github.com/bmcpi/efiboot/internal/efivars/efivarstest"
	"github.com/bmcpi/efiboot/internal/firmware/efi"
	"github.com/go-logr/logr"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRead(t *testing.T) {
	f := efivarstest.New(t)
	f.SetUint16("BootCurrent", efi.EfiGlobalVariableGUID, 3)
	f.SetString("LoaderDeviceURL", efi.SystemdVendorGUID, "http://example.com/boot.efi")
	f.SetRaw("Short", efi.EfiGlobalVariableGUID, []byte{0x07, 0x00, 0x00})
	f.SetRaw("AttrsOnly", efi.EfiGlobalVariableGUID, efivarstest.Attributes)
	require.NoError(t, f.Fs.MkdirAll(filepath.Join(f.Root, "Dir-"+efi.EfiGlobalVariableGUID), 0o755))

	s := f.Store(logr.Discard())
	require.NoError(t, s.Available())

	testCases := []struct {
		name     string
		variable string
		guid     string
		expected []byte
		err      error
	}{
		{
			name:     "Attributes are stripped",
			variable: "BootCurrent",
			guid:     efi.EfiGlobalVariableGUID,
			expected: []byte{0x03, 0x00},
		},
		{
			name:     "Empty payload",
			variable: "AttrsOnly",
			guid:     efi.EfiGlobalVariableGUID,
			expected: []byte{},
		},
		{
			name:     "Missing variable",
			variable: "BootNext",
			guid:     efi.EfiGlobalVariableGUID,
			err:      efi.ErrNotFound,
		},
		{
			name:     "Wrong vendor",
			variable: "BootCurrent",
			guid:     efi.SystemdVendorGUID,
			err:      efi.ErrNotFound,
		},
		{
			name:     "Shorter than attributes",
			variable: "Short",
			guid:     efi.EfiGlobalVariableGUID,
			err:      efi.ErrInvalidData,
		},
		{
			name:     "Directory",
			variable: "Dir",
			guid:     efi.EfiGlobalVariableGUID,
			err:      efi.ErrInvalidTarget,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := s.Read(tc.variable, tc.guid)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, data)
		})
	}
}

func TestStoreReadString(t *testing.T) {
	f := efivarstest.New(t)
	f.SetString("LoaderImageIdentifier", efi.SystemdVendorGUID, `\EFI\Linux\linux.efi`)
	f.Set("Odd", efi.SystemdVendorGUID, []byte{0x41, 0x00, 0x42})

	s := f.Store(logr.Discard())

	str, err := s.ReadString("LoaderImageIdentifier", efi.SystemdVendorGUID)
	require.NoError(t, err)
	assert.Equal(t, "/EFI/Linux/linux.efi", str)

	_, err = s.ReadString("Odd", efi.SystemdVendorGUID)
	assert.ErrorIs(t, err, efi.ErrInvalidData)

	_, err = s.ReadString("Missing", efi.SystemdVendorGUID)
	assert.ErrorIs(t, err, efi.ErrNotFound)
}

func TestStoreUnsupported(t *testing.T) {
	s := efivars.New(afero.NewMemMapFs(), efivars.DefaultRoot, logr.Discard())

	assert.ErrorIs(t, s.Available(), efi.ErrUnsupported)

	_, err := s.Read("BootCurrent", efi.EfiGlobalVariableGUID)
	assert.ErrorIs(t, err, efi.ErrUnsupported)
	assert.NotErrorIs(t, err, efi.ErrNotFound)
}

func TestStoreRootIsFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/efivars", []byte("x"), 0o644))

	s := efivars.New(fsys, "/efivars", logr.Discard())
	assert.ErrorIs(t, s.Available(), efi.ErrUnsupported)
}

func TestStoreSymlink(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "BootCurrent-"+efi.EfiGlobalVariableGUID)
	require.NoError(t, os.WriteFile(target, []byte{0x07, 0x00, 0x00, 0x00, 0x01, 0x00}, 0o644))
	link := filepath.Join(root, "BootNext-"+efi.EfiGlobalVariableGUID)
	require.NoError(t, os.Symlink(target, link))

	s := efivars.New(afero.NewOsFs(), root, logr.Discard())

	data, err := s.Read("BootCurrent", efi.EfiGlobalVariableGUID)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x00}, data)

	_, err = s.Read("BootNext", efi.EfiGlobalVariableGUID)
	assert.ErrorIs(t, err, efi.ErrInvalidTarget)
}

func TestStorePath(t *testing.T) {
	s := efivars.NewDefault(logr.Discard())
	assert.Equal(t, efivars.DefaultRoot, s.Root())
	assert.Equal(t,
		"/sys/firmware/efi/efivars/BootCurrent-8be4df61-93ca-11d2-aa0d-00e098032b8c",
		s.Path("BootCurrent", efi.EfiGlobalVariableGUID))
}
