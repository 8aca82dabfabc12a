package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"geomesh.io/hyperbr/internal/command"
)

var (
	fwImagePath string
	fwChunkSize int
	fwInterval  string
)

var firmwareCmd = &cobra.Command{
	Use:   "firmware",
	Short: "Control device firmware updates",
}

var firmwareStartCmd = &cobra.Command{
	Use:   "start <device-address>",
	Short: "Start a firmware update on a device",
	Long: `Start a chunked firmware transfer to the given device.

Examples:
  hyperbr firmware start fd00::42 -i build/fw-v2.bin
  hyperbr firmware start fd00::42 -i fw.bin --chunk-size 512 --interval 50ms`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runFirmwareStart(args[0])
	},
}

var firmwareStopCmd = &cobra.Command{
	Use:   "stop <device-address>",
	Short: "Cancel the firmware update on a device",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runFirmwareStop(args[0])
	},
}

func init() {
	firmwareStartCmd.Flags().StringVarP(&fwImagePath, "image", "i", "", "firmware image path (required)")
	firmwareStartCmd.Flags().IntVar(&fwChunkSize, "chunk-size", 0, "chunk size in bytes (0 = daemon default)")
	firmwareStartCmd.Flags().StringVar(&fwInterval, "interval", "", "delay between chunks (empty = daemon default)")
	firmwareStartCmd.MarkFlagRequired("image")

	firmwareCmd.AddCommand(firmwareStartCmd)
	firmwareCmd.AddCommand(firmwareStopCmd)
	rootCmd.AddCommand(firmwareCmd)
}

func runFirmwareStart(device string) {
	opts := map[string]interface{}{"image_path": fwImagePath}
	if fwChunkSize > 0 {
		opts["chunk_size"] = fwChunkSize
	}
	if fwInterval != "" {
		opts["interval"] = fwInterval
	}

	client := command.NewUDSClient(socketPath, 10*time.Second)
	resp, err := client.FirmwareStart(context.Background(), device, opts)
	if err != nil {
		exitWithError("daemon is not running or socket is inaccessible", err)
	}
	if resp.Error != nil {
		exitWithError(fmt.Sprintf("firmware_start failed: %s", resp.Error.Message), nil)
	}
	printResult(resp.Result)
}

func runFirmwareStop(device string) {
	client := command.NewUDSClient(socketPath, 10*time.Second)
	resp, err := client.FirmwareStop(context.Background(), device)
	if err != nil {
		exitWithError("daemon is not running or socket is inaccessible", err)
	}
	if resp.Error != nil {
		exitWithError(fmt.Sprintf("firmware_stop failed: %s", resp.Error.Message), nil)
	}
	fmt.Println("update stopping")
}
