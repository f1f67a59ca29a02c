package efi

import "errors"

// Error kinds shared by the variable readers and decoders. Callers branch
// on them with errors.Is; the concrete error usually wraps the underlying
// cause as well.
var (
	// ErrUnsupported means the platform exposes no EFI variable interface.
	ErrUnsupported = errors.New("EFI variables not supported")
	// ErrNotFound is returned for absent variables and for device paths
	// that carry nothing of interest.
	ErrNotFound = errors.New("not found")
	// ErrInvalidData marks malformed payloads.
	ErrInvalidData = errors.New("invalid data")
	// ErrOutOfRange marks text outside the supported ASCII range.
	ErrOutOfRange = errors.New("character out of range")
	// ErrInvalidTarget marks variable paths that are not regular files.
	ErrInvalidTarget = errors.New("not a regular file")
	// ErrIO wraps any other filesystem failure.
	ErrIO = errors.New("i/o error")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrUnsupported, "unsupported"},
	{ErrNotFound, "not_found"},
	{ErrInvalidData, "invalid_data"},
	{ErrOutOfRange, "out_of_range"},
	{ErrInvalidTarget, "invalid_target"},
	{ErrIO, "io"},
}

// Kind names the error kind err carries, or "other".
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "other"
}
