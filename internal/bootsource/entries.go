package bootsource

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/bmcpi/efiboot/internal/firmware/efi"
	"github.com/bmcpi/efiboot/internal/firmware/varstore"
)

// recordReader is implemented by stores that keep the full variable
// record, such as firmware images.
type recordReader interface {
	Variable(name, guid string) (*varstore.Variable, bool)
}

// Entry is one boot option from BootOrder.
type Entry struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
	Current     bool   `json:"current,omitempty"`
	Path        string `json:"path,omitempty"`
	Device      string `json:"device,omitempty"`
	URL         string `json:"url,omitempty"`
	PXEBoot     bool   `json:"pxe_boot,omitempty"`
	Error       string `json:"error,omitempty"`

	// Set only when the store keeps variable records.
	Updated        *time.Time `json:"updated,omitempty"`
	MonotonicCount uint64     `json:"monotonic_count,omitempty"`
	PubKeyIndex    uint32     `json:"pubkey_index,omitempty"`
}

// Entries decodes every option in BootOrder, in order. Options that are
// missing or do not decode are kept with Error set so a listing shows the
// whole order.
func (r *Resolver) Entries() ([]Entry, error) {
	if err := r.vars.Available(); err != nil {
		return nil, err
	}

	order, err := r.vars.Read(BootOrder, efi.EfiGlobalVariableGUID)
	if err != nil {
		return nil, err
	}
	if len(order)%2 != 0 {
		return nil, fmt.Errorf("%w: %s is %d bytes", efi.ErrInvalidData, BootOrder, len(order))
	}

	current, hasCurrent := r.current()

	entries := make([]Entry, 0, len(order)/2)
	for i := 0; i+2 <= len(order); i += 2 {
		index := binary.LittleEndian.Uint16(order[i:])
		e := Entry{
			Name:    efi.BootVariableName(index),
			Current: hasCurrent && index == current,
		}

		r.addRecord(&e)

		opt, err := r.loadOption(index)
		if err != nil {
			e.Error = err.Error()
			entries = append(entries, e)
			continue
		}
		e.Description = opt.Description
		e.Active = opt.Active()
		e.Path = efi.FormatDevicePath(opt.FilePathList)

		info, err := efi.WalkDevicePath(opt.FilePathList, r.log)
		switch {
		case err == nil:
			e.Device, e.URL, e.PXEBoot = info.Device, info.URL, info.PXE
		case !errors.Is(err, efi.ErrNotFound):
			e.Error = err.Error()
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *Resolver) current() (uint16, bool) {
	data, err := r.vars.Read(BootCurrent, efi.EfiGlobalVariableGUID)
	if err != nil || len(data) != 2 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(data), true
}

func (r *Resolver) addRecord(e *Entry) {
	rec, ok := r.vars.(recordReader)
	if !ok {
		return
	}
	v, ok := rec.Variable(e.Name, efi.EfiGlobalVariableGUID)
	if !ok {
		return
	}
	if !v.Time.IsZero() {
		updated := v.Time
		e.Updated = &updated
	}
	e.MonotonicCount = v.Count
	e.PubKeyIndex = v.PkIdx
}
