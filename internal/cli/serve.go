package cli

import (
	"github.com/spf13/cobra"

	"docqa/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Load the index and serve GET / and POST /ask. The index must exist;
the server refuses to start without it.

Examples:
  docqa serve
  DOCQA_ADDR=127.0.0.1:9000 docqa serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	p, err := loadPipeline(cfg, true)
	if err != nil {
		return err
	}
	defer p.Close()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	log.Info("index loaded",
		"chunks", p.index.Len(),
		"dimension", p.index.Manifest().Dimension,
		"model", p.index.Manifest().EmbeddingModel,
	)

	srv := server.New(p.answer, p.index.Manifest(), server.Options{
		Addr:              addr,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
	}, log)
	return srv.Run(cmd.Context())
}
