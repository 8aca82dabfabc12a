package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"geomesh.io/hyperbr/internal/command"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	Run: func(cmd *cobra.Command, args []string) {
		runStopCommand()
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStopCommand() {
	client := command.NewUDSClient(socketPath, 10*time.Second)
	resp, err := client.Shutdown(context.Background())
	if err != nil {
		exitWithError("daemon is not running or socket is inaccessible", err)
	}
	if resp.Error != nil {
		exitWithError(fmt.Sprintf("shutdown failed: %s", resp.Error.Message), nil)
	}
	fmt.Println("daemon is shutting down")
}
