// Package cmd implements CLI commands using cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	socketPath string
)

var rootCmd = &cobra.Command{
	Use:   "hyperbr",
	Short: "hyperbr - hyperspace coordinate border router",
	Long: `hyperbr stamps IPv6 packets with hyperspace routing coordinates.

Packets entering the mesh get a Hop-by-Hop coordinate option carrying
this node's position; packets leaving the mesh feed the device registry
with the coordinates their senders reported. A web dashboard and a unix
socket CLI expose the device table and firmware update control.`,
	Version: "0.1.0",
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/hyperbr/config.yml",
		"config file path")
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "/var/run/hyperbr.sock",
		"daemon control socket path")
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
