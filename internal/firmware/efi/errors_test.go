package efi_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bmcpi/efiboot/internal/firmware/efi"
	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	assert.Equal(t, "not_found", efi.Kind(fmt.Errorf("%w: Boot0001", efi.ErrNotFound)))
	assert.Equal(t, "io", efi.Kind(fmt.Errorf("%w: %w", efi.ErrIO, errors.New("permission denied"))))
	assert.Equal(t, "out_of_range", efi.Kind(fmt.Errorf("description: %w", efi.ErrOutOfRange)))
	assert.Equal(t, "unsupported", efi.Kind(efi.ErrUnsupported))
	assert.Equal(t, "other", efi.Kind(errors.New("boom")))
	assert.Equal(t, "other", efi.Kind(nil))
}
