// Command efiboot reports where the running system was booted from.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bmcpi/efiboot/internal/bootsource"
	"github.com/bmcpi/efiboot/internal/config"
	"github.com/bmcpi/efiboot/internal/efivars"
	"github.com/bmcpi/efiboot/internal/firmware/varstore"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// GitRev is the git revision of the build, set with
	// -ldflags "-X main.GitRev=...".
	GitRev = "unknown (use make)"

	startTime = time.Now()
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	v   *viper.Viper
	fs  afero.Fs
	out io.Writer
	cfg *config.Config
}

func newRootCmd(fs afero.Fs, out io.Writer) *cobra.Command {
	a := &app{v: viper.New(), fs: fs, out: out}
	var cfgFile string

	root := &cobra.Command{
		Use:   "efiboot",
		Short: "Report the UEFI boot source of the running system",
		Long: `efiboot decodes the EFI variables exposed through efivarfs, or stored in
an EDK2 firmware image, and reports whether the system was booted from the
network (HTTP or PXE) or from a disk partition.

Boot stub variables (LoaderDeviceURL, LoaderDevicePartUUID, ...) are used
when present; otherwise the BootCurrent entry is decoded.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewConfig(a.v, cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is /etc/efiboot/config.yaml)")
	flags.BoolP("debug", "d", false, "print diagnostics to stderr")
	flags.String("efivars", efivars.DefaultRoot, "efivarfs directory")
	flags.String("firmware-vars", "", "read variables from an EDK2 *_VARS.fd image instead of efivarfs")
	flags.StringP("output", "o", "text", "output format: text, json, yaml")
	flags.String("log-format", "text", "log format: text, json")

	mustBind(a.v, "debug", flags.Lookup("debug"))
	mustBind(a.v, "efivars_path", flags.Lookup("efivars"))
	mustBind(a.v, "firmware_vars", flags.Lookup("firmware-vars"))
	mustBind(a.v, "output", flags.Lookup("output"))
	mustBind(a.v, "log_format", flags.Lookup("log-format"))

	root.AddCommand(
		a.bootCmd(),
		a.defaultPartitionCmd(),
		a.companionCmd(),
		a.entriesCmd(),
		a.serveCmd(),
		a.versionCmd(),
	)
	return root
}

// variables opens the configured variable source.
func (a *app) variables() (bootsource.VariableReader, error) {
	if a.cfg.FirmwareVars != "" {
		return varstore.Open(a.fs, a.cfg.FirmwareVars, a.cfg.Log.WithName("varstore"))
	}
	return efivars.New(a.fs, a.cfg.EfivarsPath, a.cfg.Log.WithName("efivars")), nil
}

func (a *app) resolver() (*bootsource.Resolver, bootsource.VariableReader, error) {
	vars, err := a.variables()
	if err != nil {
		return nil, nil, err
	}
	return bootsource.New(vars, a.cfg.Log.WithName("bootsource")), vars, nil
}

func main() {
	root := newRootCmd(afero.NewOsFs(), os.Stdout)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "efiboot: %v\n", err)
		os.Exit(exitCode(err))
	}
}
