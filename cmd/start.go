package cmd

import (
	"github.com/spf13/cobra"

	"geomesh.io/hyperbr/internal/daemon"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the border router daemon",
	Long: `Start the hyperbr daemon in the foreground.

Examples:
  hyperbr start                       # default config path
  hyperbr start -c /etc/hyperbr/config.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		runStartCommand()
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStartCommand() {
	d, err := daemon.New(configFile)
	if err != nil {
		exitWithError("failed to create daemon", err)
	}
	if err := d.Start(); err != nil {
		exitWithError("failed to start daemon", err)
	}
	if err := d.Run(); err != nil {
		exitWithError("daemon exited with error", err)
	}
}
