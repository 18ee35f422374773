// Command courierd runs the Courier upload daemon in the foreground.
//
// It is the systemd-friendly sibling of `courier daemon`: same runtime,
// no CLI surface. Process management stays with the init system; the
// courier CLI talks to it over the control socket.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/daemonrun"
)

func main() {
	cmd := newDaemonCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newDaemonCommand() *cobra.Command {
	var configPath string
	var socketPath string
	var logLevel string
	var development bool
	var diagnostic bool

	cmd := &cobra.Command{
		Use:           "courierd",
		Short:         "Courier upload daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, _, err := config.Load(strings.TrimSpace(configPath))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if socket := strings.TrimSpace(socketPath); socket != "" {
				cfg.Daemon.SocketPath = socket
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
				Diagnostic:  diagnostic,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file")
	cmd.Flags().StringVar(&socketPath, "socket", "", "Override the daemon control socket path")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&development, "dev", false, "Log in a human-oriented development format")
	cmd.Flags().BoolVar(&diagnostic, "diagnostic", false, "Also write full debug logs under the log directory")
	return cmd
}
