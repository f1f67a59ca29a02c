// Package efivars reads EFI variables through the efivarfs pseudo
// filesystem.
package efivars

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/bmcpi/efiboot/internal/firmware/efi"
	"github.com/go-logr/logr"
	"github.com/spf13/afero"
)

// DefaultRoot is where Linux mounts efivarfs.
const DefaultRoot = "/sys/firmware/efi/efivars"

// Every efivarfs file starts with the variable's attribute bits.
const attributeSize = 4

// Store reads variables from a directory laid out like efivarfs, one file
// per variable named <Name>-<GUID>.
type Store struct {
	fsys afero.Fs
	root string
	log  logr.Logger
}

func New(fsys afero.Fs, root string, log logr.Logger) *Store {
	return &Store{fsys: fsys, root: root, log: log}
}

// NewDefault returns a Store on the host's efivarfs mount.
func NewDefault(log logr.Logger) *Store {
	return New(afero.NewOsFs(), DefaultRoot, log)
}

func (s *Store) Root() string {
	return s.root
}

// Path returns the file backing the variable name under guid.
func (s *Store) Path(name, guid string) string {
	return filepath.Join(s.root, name+"-"+guid)
}

// Available reports efi.ErrUnsupported when the variable directory is
// missing, which is the case on BIOS booted machines.
func (s *Store) Available() error {
	fi, err := s.fsys.Stat(s.root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s: %w", efi.ErrUnsupported, s.root, err)
	case err != nil:
		s.log.V(1).Info("cannot stat efivars directory", "root", s.root, "error", err.Error())
		return fmt.Errorf("%w: %w", efi.ErrIO, err)
	case !fi.IsDir():
		return fmt.Errorf("%w: %s is not a directory", efi.ErrUnsupported, s.root)
	}
	return nil
}

func (s *Store) lstat(name string) (fs.FileInfo, error) {
	if l, ok := s.fsys.(afero.Lstater); ok {
		fi, _, err := l.LstatIfPossible(name)
		return fi, err
	}
	return s.fsys.Stat(name)
}

// Read returns the payload of a variable with the attribute prefix
// stripped. Only regular files are read.
func (s *Store) Read(name, guid string) ([]byte, error) {
	p := s.Path(name, guid)

	fi, err := s.lstat(p)
	if err != nil {
		return nil, s.notExist(p, err)
	}
	if !fi.Mode().IsRegular() {
		s.log.V(1).Info("efi variable is not a regular file", "path", p, "mode", fi.Mode().String())
		return nil, fmt.Errorf("%w: %s", efi.ErrInvalidTarget, p)
	}

	data, err := afero.ReadFile(s.fsys, p)
	if err != nil {
		return nil, s.notExist(p, err)
	}
	if len(data) < attributeSize {
		s.log.V(1).Info("efi variable shorter than its attributes", "path", p, "size", len(data))
		return nil, fmt.Errorf("%w: %s is %d bytes", efi.ErrInvalidData, p, len(data))
	}

	return data[attributeSize:], nil
}

// notExist maps a failed lookup of p to the matching error kind.
func (s *Store) notExist(p string, err error) error {
	if !errors.Is(err, fs.ErrNotExist) {
		s.log.V(1).Info("failed to read efi variable", "path", p, "error", err.Error())
		return fmt.Errorf("%w: %w", efi.ErrIO, err)
	}
	if aerr := s.Available(); errors.Is(aerr, efi.ErrUnsupported) {
		return aerr
	}
	return fmt.Errorf("%w: %s", efi.ErrNotFound, p)
}

// ReadString reads a variable holding a UTF-16LE string.
func (s *Store) ReadString(name, guid string) (string, error) {
	data, err := s.Read(name, guid)
	if err != nil {
		return "", err
	}
	str, err := efi.DecodeASCII16(data)
	if err != nil {
		s.log.V(1).Info("cannot decode efi variable", "name", name, "guid", guid, "error", err.Error())
		return "", fmt.Errorf("%s-%s: %w", name, guid, err)
	}
	return str, nil
}
