package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	verboseFlag bool
	noColorFlag bool
	configFlag  string

	// Logger is configured from --verbose before any command runs.
	Logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "multisync",
	Short: "Blocking HTTP/1.1 requests with multipart file uploads",
	Long: `multisync sends a single HTTP/1.1 request and waits for the complete
response. A file can be attached as a multipart/form-data part, and the
response can be queried, validated against a JSON schema, recorded as HAR
or repeated under a rate limit.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger()
	},
}

// Execute runs the CLI and exits with the code matching the failure.
func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if !errors.As(err, &exitErr) || !exitErr.silent {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(exitCodeFor(err))
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", getEnvBool("MULTISYNC_NO_COLOR", false), "Disable colored output (env: MULTISYNC_NO_COLOR)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", getEnvString("MULTISYNC_CONFIG", ""), "Path to config file (env: MULTISYNC_CONFIG)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &exitError{code: ExitUsageError, err: err}
	})

	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(echoCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)

	// will be reconfigured in PersistentPreRun based on flags
	setupLogger()
}

// setupLogger configures the global slog logger based on the verbose flag
func setupLogger() {
	opts := &slog.HandlerOptions{Level: slog.LevelWarn}
	if verboseFlag {
		opts.Level = slog.LevelDebug
	}

	Logger = slog.New(slog.NewTextHandler(os.Stderr, opts))
	slog.SetDefault(Logger)

	if verboseFlag {
		Logger.Debug("verbose logging enabled", "pid", os.Getpid())
	}
}
