package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"geomesh.io/hyperbr/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a hyperbr configuration file without starting the daemon.

Checks YAML syntax first, then the configuration semantics (source and
sink types, log level, firmware interval).

Examples:
  hyperbr validate -c /etc/hyperbr/config.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		runValidateCommand()
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidateCommand() {
	data, err := os.ReadFile(configFile)
	if err != nil {
		exitWithError(fmt.Sprintf("failed to read file %s", configFile), err)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		fmt.Fprintf(os.Stderr, "INVALID: yaml syntax: %v\n", err)
		os.Exit(1)
	}
	if _, ok := doc["hyperbr"]; !ok {
		fmt.Fprintln(os.Stderr, "INVALID: missing top-level hyperbr key")
		os.Exit(1)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("VALID: node %q, source %s, sink %s, dashboard %s\n",
		cfg.Node.Hostname,
		cfg.Ingest.Source.Type,
		cfg.Forward.Sink.Type,
		cfg.Dashboard.Listen,
	)
}
