//go:build unix

package main

import (
	"errors"

	"github.com/bmcpi/efiboot/internal/bootsource"
	"github.com/bmcpi/efiboot/internal/firmware/efi"
	"golang.org/x/sys/unix"
)

// exitCode maps an error to the errno the failure corresponds to, so
// scripts can tell a BIOS machine from a broken variable.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, bootsource.ErrNotDevice):
		return int(unix.ENODEV)
	case errors.Is(err, efi.ErrNotFound):
		return int(unix.ENOENT)
	case errors.Is(err, efi.ErrUnsupported):
		return int(unix.EOPNOTSUPP)
	case errors.Is(err, efi.ErrInvalidData):
		return int(unix.EINVAL)
	case errors.Is(err, efi.ErrOutOfRange):
		return int(unix.ERANGE)
	case errors.Is(err, efi.ErrInvalidTarget):
		return int(unix.EBADF)
	case errors.Is(err, efi.ErrIO):
		return int(unix.EIO)
	}
	return 1
}
