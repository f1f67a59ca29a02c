package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/bmcpi/efiboot/internal/bootsource"
	"github.com/bmcpi/efiboot/internal/efivars/efivarstest"
	"github.com/bmcpi/efiboot/internal/firmware/efi"
	"github.com/bmcpi/efiboot/internal/firmware/varstore/varstoretest"
	"github.com/ghodss/yaml"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rootDevice = "/dev/disk/by-partuuid/04030201-0605-0807-090a-0b0c0d0e0f10"

func diskPath(t *testing.T) *efi.DevicePath {
	t.Helper()
	sig, err := efi.GUIDFromBytes([]byte{
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10,
	}, 0)
	require.NoError(t, err)
	return efi.NewDevicePath().
		PCIRoot(0).
		PCI(2, 0).
		GptPartition(1, 2048, 204800, sig).
		FilePath(`\EFI\BOOT\BOOTX64.EFI`)
}

func httpPath(uri string) *efi.DevicePath {
	return efi.NewDevicePath().PCIRoot(0).PCI(3, 0).URI(uri)
}

func run(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	var out bytes.Buffer
	cmd := newRootCmd(fs, &out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func diskFixture(t *testing.T) *efivarstest.Fixture {
	f := efivarstest.New(t)
	f.SetUint16(bootsource.BootOrder, efi.EfiGlobalVariableGUID, 1, 2)
	f.SetUint16(bootsource.BootCurrent, efi.EfiGlobalVariableGUID, 1)
	f.SetBootEntry(1, "Linux", diskPath(t))
	f.SetBootEntry(2, "UEFI HTTPv4", httpPath("http://example.com/boot.efi"))
	return f
}

func TestBootText(t *testing.T) {
	f := diskFixture(t)

	out, err := run(t, f.Fs, "boot")
	require.NoError(t, err)
	assert.Equal(t, ""+
		"Boot Entry:        Linux\n"+
		"Loader Device:     "+rootDevice+"\n"+
		"Loader URL:        n/a\n"+
		"Loader Image:      /EFI/BOOT/BOOTX64.EFI\n"+
		"PXE Boot:          no\n"+
		"Default Partition: "+rootDevice+"\n", out)
}

func TestBootJSON(t *testing.T) {
	f := efivarstest.New(t)
	f.SetString(bootsource.LoaderDeviceURL, efi.SystemdVendorGUID, "http://example.com/stub.efi")

	out, err := run(t, f.Fs, "boot", "-o", "json")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, map[string]any{
		"url":      "http://example.com/stub.efi",
		"pxe_boot": false,
	}, got)
}

func TestBootFirmwareImage(t *testing.T) {
	img := varstoretest.New(t).
		SetUint16(bootsource.BootCurrent, efi.EfiGlobalVariableGUID, 2).
		SetBootEntry(2, "UEFI HTTPv4", httpPath("http://example.com/boot.efi")).
		Bytes()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/vm_VARS.fd", img, 0o644))

	out, err := run(t, fs, "boot", "--firmware-vars", "/vm_VARS.fd", "--output", "yaml")
	require.NoError(t, err)

	var got bootsource.Result
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, bootsource.Result{Entry: "UEFI HTTPv4", URL: "http://example.com/boot.efi"}, got)
}

func TestDefaultPartition(t *testing.T) {
	f := diskFixture(t)

	out, err := run(t, f.Fs, "default-partition")
	require.NoError(t, err)
	assert.Equal(t, "Default Partition: "+rootDevice+"\n", out)
}

func TestCompanion(t *testing.T) {
	testCases := []struct {
		name     string
		args     []string
		expected string
	}{
		{
			name:     "Disk boot",
			args:     []string{"companion"},
			expected: "Companion Path: /boot/efi/EFI/BOOT/BOOTX64.rdii-config\n",
		},
		{
			name:     "Custom suffix and mount",
			args:     []string{"companion", "--suffix", ".cfg", "--esp-mount", "/efi"},
			expected: "Companion Path: /efi/EFI/BOOT/BOOTX64.cfg\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := diskFixture(t)
			out, err := run(t, f.Fs, tc.args...)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, out)
		})
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, afero.NewMemMapFs(), "version")
	require.NoError(t, err)
	assert.Equal(t, "efiboot "+GitRev+"\n", out)
}

func TestInvalidOutput(t *testing.T) {
	f := diskFixture(t)
	_, err := run(t, f.Fs, "boot", "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestEntries(t *testing.T) {
	f := diskFixture(t)

	out, err := run(t, f.Fs, "entries", "-o", "json")
	require.NoError(t, err)

	var got []bootsource.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Boot0001", got[0].Name)
	assert.True(t, got[0].Current)
	assert.Equal(t, rootDevice, got[0].Device)
	assert.Equal(t, "http://example.com/boot.efi", got[1].URL)

	out, err = run(t, f.Fs, "entries")
	require.NoError(t, err)
	assert.Contains(t, out, "*Boot0001")
	assert.Contains(t, out, "UEFI HTTPv4")
}

func TestEntriesFirmwareImage(t *testing.T) {
	opt, err := efi.NewBootEntry("Linux", diskPath(t))
	require.NoError(t, err)
	data, err := opt.Bytes()
	require.NoError(t, err)

	img := varstoretest.New(t).
		SetUint16(bootsource.BootOrder, efi.EfiGlobalVariableGUID, 1).
		Add(varstoretest.Var{Name: "Boot0001", GUID: efi.EfiGlobalVariableGUID, Attr: 0x07, Data: data, Year: 2023, Count: 3}).
		Bytes()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/vm_VARS.fd", img, 0o644))

	out, err := run(t, fs, "entries", "--firmware-vars", "/vm_VARS.fd")
	require.NoError(t, err)
	assert.Contains(t, out, "Boot0001")
	assert.Contains(t, out, "(updated 2023-01-01T00:00:00Z, count 3)")
}
