package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	queryText string
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Show the chunks retrieved for a query",
	Long: `Retrieve the chunks closest to the query by L2 distance without calling
the language model. Useful for checking what context a question would get.

Examples:
  docqa query -q "leave policy"
  docqa query -q "leave policy" --top-k 5 --json`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	p, err := loadPipeline(cfg, false)
	if err != nil {
		return err
	}
	defer p.Close()

	topK := cfg.Retrieve.TopK
	if queryTopK > 0 {
		topK = queryTopK
	}

	results, err := p.retriever.Search(cmd.Context(), queryText, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if queryJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Fprintln(out, string(output))
		return nil
	}

	fmt.Fprintf(out, "Found %d results for: %s\n\n", len(results), queryText)
	for i, r := range results {
		fmt.Fprintf(out, "--- [%d] %s #%d (distance: %.4f) ---\n", i+1, r.Chunk.Source, r.Chunk.Position, r.Distance)
		// Truncate long text for display
		text := []rune(r.Chunk.Text)
		if len(text) > 500 {
			text = append(text[:500], []rune("...")...)
		}
		fmt.Fprintln(out, string(text))
		fmt.Fprintln(out)
	}
	return nil
}
