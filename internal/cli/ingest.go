package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"docqa/config"
	"docqa/internal/adapter/chunker"
	"docqa/internal/adapter/fs"
	"docqa/internal/adapter/loader"
	"docqa/internal/usecase"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Build the vector index from a document directory",
	Long: `Load every PDF and text document under the directory, split it into
fixed-size chunks, embed the chunks and write index.db and chunks.db to the
index directory. Existing artifacts are replaced only when the run succeeds.

Examples:
  docqa ingest                  # Use documents.dir from config
  docqa ingest ./handbook       # Ingest a specific directory`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	docsDir := config.ResolvePath(GetRootDir(), cfg.Documents.Dir)
	if len(args) > 0 {
		var err error
		docsDir, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	chk, err := chunker.NewWindowChunker(cfg.Index.ChunkSize)
	if err != nil {
		return err
	}

	emb, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	if c, ok := emb.(io.Closer); ok {
		defer c.Close()
	}

	walker := fs.NewWalker(cfg.Documents.Includes, cfg.Documents.Excludes)
	ingestUC := usecase.NewIngestUseCase(loader.NewLoader(walker), chk, emb, usecase.IngestOptions{
		IndexDir:  indexDir(cfg),
		ChunkSize: chk.Size(),
		BatchSize: cfg.Embedding.BatchSize,
	}, log)

	fmt.Fprintf(cmd.OutOrStdout(), "Ingesting %s...\n", docsDir)

	var (
		bar       *progressbar.ProgressBar
		startTime time.Time
	)
	progress := func(done, total int) {
		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(cmd.ErrOrStderr())
				}),
			)
		}
		_ = bar.Set(done)

		elapsed := time.Since(startTime)
		if rate := float64(done) / elapsed.Seconds(); done > 0 && rate > 0 {
			eta := time.Duration(float64(total-done)/rate) * time.Second
			bar.Describe(fmt.Sprintf("[cyan]Embedding[reset] ETA: %s", formatDuration(eta)))
		}
	}

	result, err := ingestUC.Ingest(cmd.Context(), docsDir, progress)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nIngestion complete:\n")
	fmt.Fprintf(out, "  Documents:      %d\n", result.Documents)
	fmt.Fprintf(out, "  Pages/files:    %d\n", result.Pages)
	fmt.Fprintf(out, "  Empty skipped:  %d\n", result.EmptyDocuments)
	fmt.Fprintf(out, "  Chunks:         %d\n", result.Chunks)
	fmt.Fprintf(out, "  Dimension:      %d\n", result.Dimension)
	fmt.Fprintf(out, "  Elapsed:        %s\n", formatDuration(result.Elapsed))
	fmt.Fprintf(out, "\nIndex stored at: %s\n", indexDir(cfg))
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
