// Package cmd holds the civicsync command-line entry points.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"civicsync/config"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "civicsync",
	Short: "Civic issue reporting and mentoring backend",
	Long: `civicsync serves the issue lifecycle, upvote and response API.

Examples:
  civicsync serve                       # Serve against MongoDB and Redis
  civicsync serve --memory --mentor ID  # Serve from memory with one mentor
  civicsync indexes                     # Create MongoDB indexes
  civicsync token --user ID --admin     # Mint a bearer token`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(indexesCmd)
	rootCmd.AddCommand(tokenCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadSettings reads configuration with cmd's flags layered on top.
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	settings, err := config.Load(cmd.Flags(), ".env")
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return settings, nil
}

// newLogger builds the process logger. Production logs are JSON.
func newLogger(settings *config.Settings) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(settings.LogLevel))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if settings.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
