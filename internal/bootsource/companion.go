package bootsource

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmcpi/efiboot/internal/firmware/efi"
)

const efiSuffix = ".efi"

// Companion locates a file shipped next to the boot image, such as a
// configuration blob. Exactly one of URL and Path is set.
// DefaultCompanionSuffix names the config shipped next to a boot image.
const DefaultCompanionSuffix = ".rdii-config"

type Companion struct {
	URL  string `json:"url,omitempty"`
	Path string `json:"path,omitempty"`
}

// Companion derives the companion location by replacing the ".efi" suffix
// of the boot URL or image with suffix. Disk images are looked up below
// espMount, where the EFI system partition is mounted.
func (r *Result) Companion(suffix, espMount string) (Companion, error) {
	if r.URL != "" {
		u, ok := replaceSuffix(r.URL, suffix)
		if !ok {
			return Companion{}, fmt.Errorf("%w: boot URL %s has no %s suffix", efi.ErrNotFound, r.URL, efiSuffix)
		}
		return Companion{URL: u}, nil
	}

	if r.Device != "" && r.Image != "" {
		img, ok := replaceSuffix(r.Image, suffix)
		if !ok {
			return Companion{}, fmt.Errorf("%w: boot image %s has no %s suffix", efi.ErrNotFound, r.Image, efiSuffix)
		}
		return Companion{Path: path.Join(espMount, img)}, nil
	}

	return Companion{}, fmt.Errorf("%w: boot source has neither URL nor image", efi.ErrNotFound)
}

func replaceSuffix(s, suffix string) (string, bool) {
	if len(s) < len(efiSuffix) || !strings.EqualFold(s[len(s)-len(efiSuffix):], efiSuffix) {
		return "", false
	}
	return s[:len(s)-len(efiSuffix)] + suffix, true
}
