package main

import (
	"strings"

	"github.com/spf13/cobra"

	"courier/internal/daemonrun"
)

// newDaemonRunCommand runs the daemon in the foreground. `courier start`
// launches it detached; it stays hidden because users interact through
// start/stop/restart.
func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	var diagnostic bool

	cmd := &cobra.Command{
		Use:          "daemon",
		Short:        "Run the courier daemon in the foreground",
		Hidden:       true,
		Annotations:  map[string]string{"skipConfigLoad": "true"},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if ctx.socketFlag != nil {
				if socket := strings.TrimSpace(*ctx.socketFlag); socket != "" {
					cfg.Daemon.SocketPath = socket
				}
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
				Diagnostic:  diagnostic,
			})
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&development, "dev", false, "Log in a human-oriented development format")
	cmd.Flags().BoolVar(&diagnostic, "diagnostic", false, "Also write full debug logs under the log directory")
	return cmd
}
