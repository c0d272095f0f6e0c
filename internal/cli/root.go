package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"docqa/config"
	"docqa/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
	verbose bool
	log     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Document QA - answer questions from your own documents",
	Long: `docqa ingests a directory of PDF and text documents into a local vector
index and answers natural-language questions with a language model, using
only the passages retrieved from that index.

Example usage:
  docqa ingest data/documents          # Build the index
  docqa ask -q "What is the leave policy?"
  docqa serve                          # Start the HTTP API on :8000`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		log = logger.New(logger.Options{
			Level:  level,
			Format: cfg.Logging.Format,
			Output: os.Stderr,
		})
		slog.SetDefault(log)

		return nil
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context, which stops ingestion and shuts the server down gracefully.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./docqa.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "working directory (default is current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
