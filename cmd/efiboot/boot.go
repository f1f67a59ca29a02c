package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bmcpi/efiboot/internal/bootsource"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func (a *app) bootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "boot",
		Short: "Print the boot source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, _, err := a.resolver()
			if err != nil {
				return err
			}
			res, err := r.Resolve()
			if err != nil {
				return fmt.Errorf("couldn't get boot source: %w", err)
			}
			return a.print(res, func(w io.Writer) error {
				_, err := fmt.Fprintf(w,
					"Boot Entry:        %s\nLoader Device:     %s\nLoader URL:        %s\nLoader Image:      %s\nPXE Boot:          %s\nDefault Partition: %s\n",
					orNA(res.Entry), orNA(res.Device), orNA(res.URL), orNA(res.Image),
					yesNo(res.PXEBoot), orNA(res.DefaultPartition))
				return err
			})
		},
	}
}

type defaultPartition struct {
	DefaultPartition string `json:"default_partition"`
	Device           string `json:"device,omitempty"`
}

func (a *app) defaultPartitionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default-partition",
		Short: "Print the partition of the first BootOrder entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, vars, err := a.resolver()
			if err != nil {
				return err
			}
			if err := vars.Available(); err != nil {
				return err
			}
			part, err := r.DefaultPartition()
			if err != nil {
				return fmt.Errorf("couldn't get default partition: %w", err)
			}

			out := defaultPartition{DefaultPartition: part, Device: a.resolveLink(part)}
			return a.print(out, func(w io.Writer) error {
				if _, err := fmt.Fprintf(w, "Default Partition: %s\n", out.DefaultPartition); err != nil {
					return err
				}
				if out.Device != "" {
					_, err := fmt.Fprintf(w, "Device:            %s\n", out.Device)
					return err
				}
				return nil
			})
		},
	}
}

// resolveLink follows a udev by-partuuid link to the block device. It
// returns "" when the link cannot be read.
func (a *app) resolveLink(link string) string {
	lr, ok := a.fs.(afero.LinkReader)
	if !ok {
		return ""
	}
	target, err := lr.ReadlinkIfPossible(link)
	if err != nil {
		a.cfg.Log.V(1).Info("cannot resolve partition link", "link", link, "error", err.Error())
		return ""
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(link), target)
	}
	return target
}

func (a *app) companionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "companion",
		Short: "Print where the configuration shipped with the boot image lives",
		Long: `Derives the location of a companion file from the boot source by
replacing the .efi suffix of the boot URL or loader image. For disk boots
the path is below the mount point of the EFI system partition.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, _, err := a.resolver()
			if err != nil {
				return err
			}
			res, err := r.Resolve()
			if err != nil {
				return fmt.Errorf("couldn't get boot source: %w", err)
			}
			c, err := res.Companion(a.cfg.Companion.Suffix, a.cfg.Companion.ESPMount)
			if err != nil {
				return err
			}
			if c.Path != "" {
				if _, err := a.fs.Stat(c.Path); errors.Is(err, os.ErrNotExist) {
					a.cfg.Log.V(1).Info("companion file does not exist", "path", c.Path)
				}
			}
			return a.print(c, func(w io.Writer) error {
				var err error
				if c.URL != "" {
					_, err = fmt.Fprintf(w, "Companion URL:  %s\n", c.URL)
				} else {
					_, err = fmt.Fprintf(w, "Companion Path: %s\n", c.Path)
				}
				return err
			})
		},
	}

	cmd.Flags().String("suffix", bootsource.DefaultCompanionSuffix, "suffix replacing .efi")
	cmd.Flags().String("esp-mount", "/boot/efi", "mount point of the EFI system partition")
	mustBind(a.v, "companion.suffix", cmd.Flags().Lookup("suffix"))
	mustBind(a.v, "companion.esp_mount", cmd.Flags().Lookup("esp-mount"))
	return cmd
}
