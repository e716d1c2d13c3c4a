// Command sioctl talks to socket.io 0.9 servers from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var configPath string
	flags := &connFlags{}

	rootCmd := &cobra.Command{
		Use:   "sioctl",
		Short: "Talk to socket.io 0.9 servers",
		Long: `sioctl performs socket.io protocol v1 handshakes, emits events and
listens on namespaces.

Settings are read from a TOML file (--config) and overridden by flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file")
	flags.register(rootCmd)

	load := func(cmd *cobra.Command) (settings, error) {
		s, err := loadSettings(configPath)
		if err != nil {
			return settings{}, err
		}
		return flags.apply(cmd, s)
	}

	rootCmd.AddCommand(
		handshakeCmd(load),
		emitCmd(load),
		listenCmd(load),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sioctl: %v\n", err)
		os.Exit(1)
	}
}
