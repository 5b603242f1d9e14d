// Package cmd provides the casehub command-line interface.
package cmd

import (
	"encoding/json"
	"io"

	"casehub/bootstrap"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags
var (
	configFile string
	noColor    bool
	quiet      bool
)

// newCLIApp builds the application used by one-shot commands: no
// diagnostics server, no background polling and no log output.
// Tests replace it.
var newCLIApp = func(path string) (*bootstrap.App, error) {
	cfg, err := bootstrap.InitConfig(path)
	if err != nil {
		return nil, err
	}
	cfg.Diagnostics.Enabled = false
	cfg.Monitor.PollInterval = 0
	return bootstrap.New(cfg, zap.NewNop())
}

// NewRootCmd creates the casehub command with all subcommands
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "casehub",
		Short: "Multi-user case coordination node",
		Long: `casehub connects a forensic workstation to the shared services of a
multi-user case: the case database, the keyword search server, the message
broker and the coordination service.

It monitors those services, gates case opening on their health and relays
case events between the instances working on the same case.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path (default: search for casehub.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newTestCmd())

	return rootCmd
}

func outputAsJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func outputAsYAML(w io.Writer, data interface{}) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return err
	}
	return encoder.Close()
}
