package flags

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/la-vak/la-vak/logging"
)

// Parse populates opts from os.Args, mirroring wireguard-go's flags
// package: a flat pflag.*Var call per option, no subcommands.
func Parse(opts *Options) error {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n", os.Args[0])
		pflag.PrintDefaults()
	}

	pflag.StringVar(&opts.BindAddr, "bind", opts.BindAddr, "Address to bind the transport TLS listener on (host:port; empty host binds all interfaces)")
	pflag.IntVar(&opts.TransportPort, "port", opts.TransportPort, "Transport TLS port (0 asks the OS for one)")
	pflag.IntVar(&opts.HTTPPort, "http-port", opts.HTTPPort, "HTTP facade port announced via discovery (0 if no facade is running)")
	pflag.StringVar(&opts.DownloadsDir, "downloads-dir", opts.DownloadsDir, "Directory received files are saved to (default: <home>/Downloads/la-vak)")
	pflag.CountP("verbose", "v", "Increase log verbosity (repeatable: -v, -vv, -vvv)")
	pflag.BoolVarP(&opts.ShowVersion, "version", "V", false, "Print the version number and exit")

	pflag.Parse()

	if opts.ShowVersion {
		return nil
	}

	verbosity, _ := pflag.CommandLine.GetCount("verbose")
	opts.LogLevel = logging.LogLevelError + verbosity
	if opts.LogLevel > logging.LogLevelDebug {
		opts.LogLevel = logging.LogLevelDebug
	}

	return nil
}
