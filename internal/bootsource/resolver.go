// Package bootsource works out which boot source the firmware started the
// running system from.
package bootsource

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/bmcpi/efiboot/internal/firmware/efi"
	"github.com/go-logr/logr"
)

// ErrNotDevice means a boot entry exists but does not point at a disk
// partition.
var ErrNotDevice = errors.New("boot entry does not reference a partition")

// Variable names read by the resolver.
const (
	BootCurrent           = "BootCurrent"
	BootOrder             = "BootOrder"
	LoaderEntrySelected   = "LoaderEntrySelected"
	LoaderDeviceURL       = "LoaderDeviceURL"
	LoaderDevicePartUUID  = "LoaderDevicePartUUID"
	LoaderImageIdentifier = "LoaderImageIdentifier"
)

// VariableReader is a source of EFI variables, such as efivarfs or a
// firmware image. Read returns the payload without attribute bytes.
type VariableReader interface {
	Available() error
	Read(name, guid string) ([]byte, error)
	ReadString(name, guid string) (string, error)
}

type Resolver struct {
	vars VariableReader
	log  logr.Logger
}

func New(vars VariableReader, log logr.Logger) *Resolver {
	return &Resolver{vars: vars, log: log}
}

// Resolve reports the boot source. Variables left behind by a boot stub
// take precedence over BootCurrent; the first strategy that finds anything
// wins. efi.ErrUnsupported is returned on machines without EFI variables.
func (r *Resolver) Resolve() (*Result, error) {
	if err := r.vars.Available(); err != nil {
		return nil, err
	}

	res, err := r.fromStub()
	if errors.Is(err, efi.ErrNotFound) {
		r.log.V(1).Info("no boot stub variables, falling back to BootCurrent")
		res, err = r.fromBootCurrent()
	}
	if err != nil {
		return nil, err
	}

	part, err := r.DefaultPartition()
	switch {
	case err == nil:
		res.DefaultPartition = part
	case errors.Is(err, ErrNotDevice), errors.Is(err, efi.ErrNotFound):
		r.log.V(1).Info("no default partition", "reason", err.Error())
	default:
		return nil, err
	}

	return res, nil
}

// DefaultPartition returns the partition of the first BootOrder entry.
func (r *Resolver) DefaultPartition() (string, error) {
	data, err := r.vars.Read(BootOrder, efi.EfiGlobalVariableGUID)
	if err != nil {
		return "", err
	}
	if len(data) < 2 {
		return "", fmt.Errorf("%w: %s is empty", efi.ErrNotFound, BootOrder)
	}

	opt, err := r.loadOption(binary.LittleEndian.Uint16(data[0:2]))
	if err != nil {
		return "", err
	}

	info, err := efi.WalkDevicePath(opt.FilePathList, r.log)
	if errors.Is(err, efi.ErrNotFound) {
		return "", fmt.Errorf("%w: %q", ErrNotDevice, opt.Description)
	}
	if err != nil {
		return "", err
	}
	if info.Device == "" {
		return "", fmt.Errorf("%w: %q", ErrNotDevice, opt.Description)
	}
	return info.Device, nil
}

func (r *Resolver) stubString(name string) (string, error) {
	s, err := r.vars.ReadString(name, efi.SystemdVendorGUID)
	if errors.Is(err, efi.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	r.log.V(1).Info("read boot stub variable", "name", name, "value", s)
	return s, nil
}

// fromStub uses the Loader* variables a systemd-boot style stub sets.
func (r *Resolver) fromStub() (*Result, error) {
	res := &Result{}
	var err error

	if res.Entry, err = r.stubString(LoaderEntrySelected); err != nil {
		return nil, err
	}
	if res.URL, err = r.stubString(LoaderDeviceURL); err != nil {
		return nil, err
	}

	partUUID, err := r.stubString(LoaderDevicePartUUID)
	if err != nil {
		return nil, err
	}
	if partUUID != "" {
		res.Device = efi.PartUUIDDir + strings.ToLower(partUUID)
		if res.Image, err = r.stubString(LoaderImageIdentifier); err != nil {
			return nil, err
		}
	}

	if res.URL == "" && res.Device == "" && res.Image == "" {
		return nil, fmt.Errorf("%w: no boot stub variables", efi.ErrNotFound)
	}
	return res, nil
}

// fromBootCurrent decodes the boot option the firmware reports as current.
func (r *Resolver) fromBootCurrent() (*Result, error) {
	data, err := r.vars.Read(BootCurrent, efi.EfiGlobalVariableGUID)
	if err != nil {
		return nil, err
	}
	if len(data) != 2 {
		return nil, fmt.Errorf("%w: %s is %d bytes, want 2", efi.ErrInvalidData, BootCurrent, len(data))
	}

	opt, err := r.loadOption(binary.LittleEndian.Uint16(data))
	if err != nil {
		return nil, err
	}

	info, err := efi.WalkDevicePath(opt.FilePathList, r.log)
	if err != nil {
		return nil, fmt.Errorf("boot entry %q: %w", opt.Description, err)
	}

	return &Result{
		Device:  info.Device,
		URL:     info.URL,
		Image:   info.Image,
		Entry:   opt.Description,
		PXEBoot: info.PXE,
	}, nil
}

func (r *Resolver) loadOption(index uint16) (*efi.LoadOption, error) {
	name := efi.BootVariableName(index)
	r.log.V(1).Info("reading boot option", "name", name)

	data, err := r.vars.Read(name, efi.EfiGlobalVariableGUID)
	if err != nil {
		return nil, err
	}
	opt, err := efi.ParseLoadOption(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	r.log.V(1).Info("parsed boot option", "name", name, "description", opt.Description,
		"path", efi.FormatDevicePath(opt.FilePathList))
	return opt, nil
}
