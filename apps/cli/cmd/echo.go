package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/multisync/packages/echo"
)

var (
	echoPortFlag  int
	echoDelayFlag string
)

var echoCmd = &cobra.Command{
	Use:   "echo",
	Short: "Start a server that echoes requests back as JSON",
	Long: `Start an HTTP server that answers every request with a JSON description
of what it received: method, URL, headers, form fields and uploaded files
with their size and SHA-256.

Useful as a target for "multisync request" when checking uploads.

Examples:
  multisync echo
  multisync echo --port 3000
  multisync echo --port 3000 --delay 100ms`,
	Args: cobra.NoArgs,
	RunE: echoCommand,
}

func init() {
	echoCmd.Flags().IntVarP(&echoPortFlag, "port", "p", 0, "Port to listen on (default from config, 9898)")
	echoCmd.Flags().StringVarP(&echoDelayFlag, "delay", "d", "0", "Delay to add to all responses (e.g., 100ms, 1s)")
}

func echoCommand(cmd *cobra.Command, args []string) error {
	var delay time.Duration
	if echoDelayFlag != "0" {
		var err error
		delay, err = time.ParseDuration(echoDelayFlag)
		if err != nil {
			return usageError(fmt.Errorf("invalid delay value %q: %w", echoDelayFlag, err))
		}
	}

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	port := cfg.EchoPort
	if echoPortFlag > 0 {
		port = echoPortFlag
	}

	server := echo.NewServer(
		echo.WithPort(port),
		echo.WithDelay(delay),
		echo.WithLogger(Logger),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Echo server listening on :%d\n", server.Port())
	if err := server.StartWithContext(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down echo server...")
	return nil
}
