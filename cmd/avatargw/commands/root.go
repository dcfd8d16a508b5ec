package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ABHI-11949/avatar/internal/config"
	"github.com/ABHI-11949/avatar/internal/observability"
)

// Version is overridden at build time with -ldflags "-X ...commands.Version=...".
var Version = "dev"

var (
	cfg    config.Config
	logger *slog.Logger

	logLevel string
)

func Execute() error {
	root := &cobra.Command{
		Use:           "avatargw",
		Short:         "Backend gateway for HeyGen streaming avatar sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if logLevel != "" {
				loaded.LogLevel = logLevel
			}
			cfg = loaded
			logger = observability.NewLogger(observability.LogConfig{
				Level:  cfg.LogLevel,
				Format: cfg.LogFormat,
			})
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(serveCmd(), avatarsCmd(), versionCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "avatargw:", err)
		return err
	}
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
			return nil
		},
	}
}
