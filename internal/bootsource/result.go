package bootsource

// Result describes where the running boot image came from. Empty strings
// mean the value is unknown.
type Result struct {
	// Device is the partition the image was loaded from, usually a
	// /dev/disk/by-partuuid link.
	Device string `json:"device,omitempty"`
	URL    string `json:"url,omitempty"`
	// Image is the loader path on Device with '/' separators.
	Image   string `json:"image,omitempty"`
	Entry   string `json:"entry,omitempty"`
	PXEBoot bool   `json:"pxe_boot"`
	// DefaultPartition is the partition of the first BootOrder entry.
	DefaultPartition string `json:"default_partition,omitempty"`
}

// Source classifies the result as "network", "pxe" or "disk".
func (r *Result) Source() string {
	switch {
	case r.URL != "":
		return "network"
	case r.PXEBoot:
		return "pxe"
	default:
		return "disk"
	}
}

func (r *Result) empty() bool {
	return r.URL == "" && r.Device == "" && r.Image == "" && !r.PXEBoot
}
