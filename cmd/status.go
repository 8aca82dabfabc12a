package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"geomesh.io/hyperbr/internal/command"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long: `Query the daemon for its status.

Shows: uptime, known device count, and pipeline counters.`,
	Run: func(cmd *cobra.Command, args []string) {
		runStatusCommand()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatusCommand() {
	client := command.NewUDSClient(socketPath, 10*time.Second)
	resp, err := client.Status(context.Background())
	if err != nil {
		exitWithError("daemon is not running or socket is inaccessible", err)
	}
	if resp.Error != nil {
		exitWithError(fmt.Sprintf("daemon_status failed: %s", resp.Error.Message), nil)
	}
	printResult(resp.Result)
}

func printResult(result interface{}) {
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		exitWithError("failed to format result", err)
	}
	fmt.Println(string(out))
}
