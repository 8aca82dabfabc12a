package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"geomesh.io/hyperbr/internal/command"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List all known mesh devices",
	Long: `List the device table: every address seen with a coordinate,
its last reported position, and when it was last updated.`,
	Run: func(cmd *cobra.Command, args []string) {
		runDevicesCommand()
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevicesCommand() {
	client := command.NewUDSClient(socketPath, 10*time.Second)
	resp, err := client.DeviceList(context.Background())
	if err != nil {
		exitWithError("daemon is not running or socket is inaccessible", err)
	}
	if resp.Error != nil {
		exitWithError(fmt.Sprintf("device_list failed: %s", resp.Error.Message), nil)
	}
	printResult(resp.Result)
}
