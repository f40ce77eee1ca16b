// Command polytoped is the depot core's bootstrap binary: it configures
// and opens a depot's durable store and root account, and blocks serving
// it. It is not the interactive client (§1 names that an excluded
// external collaborator) — only the configuration bootstrap §6 describes.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/config"
	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/logging"
)

var logger *slog.Logger

var rootCmd = &cobra.Command{
	Use:   "polytoped",
	Short: "Bootstrap and serve a Polytope depot",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("initializing configuration: %w", err)
		}
		logger = logging.New(logging.Options{
			Path:  config.GetString("logPath"),
			Level: slog.LevelInfo,
			JSON:  config.GetBool("jsonLogs"),
		})
		return nil
	},
}

func main() {
	rootCmd.AddCommand(initCmd, serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
