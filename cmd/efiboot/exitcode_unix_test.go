//go:build unix

package main

import (
	"testing"

	"github.com/bmcpi/efiboot/internal/bootsource"
	"github.com/bmcpi/efiboot/internal/efivars/efivarstest"
	"github.com/bmcpi/efiboot/internal/firmware/efi"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestExitCodes(t *testing.T) {
	testCases := []struct {
		name     string
		setup    func(t *testing.T) afero.Fs
		args     []string
		expected int
	}{
		{
			name:     "No efivarfs",
			setup:    func(t *testing.T) afero.Fs { return afero.NewMemMapFs() },
			args:     []string{"boot"},
			expected: int(unix.EOPNOTSUPP),
		},
		{
			name:     "No boot information",
			setup:    func(t *testing.T) afero.Fs { return efivarstest.New(t).Fs },
			args:     []string{"boot"},
			expected: int(unix.ENOENT),
		},
		{
			name: "Malformed BootCurrent",
			setup: func(t *testing.T) afero.Fs {
				f := efivarstest.New(t)
				f.Set(bootsource.BootCurrent, efi.EfiGlobalVariableGUID, []byte{0x01})
				return f.Fs
			},
			args:     []string{"boot"},
			expected: int(unix.EINVAL),
		},
		{
			name: "Default entry is not a disk",
			setup: func(t *testing.T) afero.Fs {
				f := efivarstest.New(t)
				f.SetUint16(bootsource.BootOrder, efi.EfiGlobalVariableGUID, 2)
				f.SetBootEntry(2, "UEFI HTTPv4", httpPath("http://example.com/boot.efi"))
				return f.Fs
			},
			args:     []string{"default-partition"},
			expected: int(unix.ENODEV),
		},
		{
			name:     "Missing firmware image",
			setup:    func(t *testing.T) afero.Fs { return afero.NewMemMapFs() },
			args:     []string{"boot", "--firmware-vars", "/missing.fd"},
			expected: int(unix.EIO),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := run(t, tc.setup(t), tc.args...)
			require.Error(t, err)
			assert.Equal(t, tc.expected, exitCode(err))
		})
	}
}
