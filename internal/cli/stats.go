package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"docqa/internal/adapter/store"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the manifest of the persisted index",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	dir := indexDir(GetConfig())
	if !store.Exists(dir) {
		return fmt.Errorf("no index found in %s. Run 'docqa ingest' first", dir)
	}

	// a full load also verifies that both artifacts belong together
	idx, err := store.Load(dir)
	if err != nil {
		return err
	}
	m := idx.Manifest()

	out := cmd.OutOrStdout()
	if statsJSON {
		output, _ := json.MarshalIndent(m, "", "  ")
		fmt.Fprintln(out, string(output))
		return nil
	}

	fmt.Fprintf(out, "Index:            %s\n", dir)
	fmt.Fprintf(out, "Schema version:   %d\n", m.SchemaVersion)
	fmt.Fprintf(out, "Chunks:           %d\n", m.Count)
	fmt.Fprintf(out, "Dimension:        %d\n", m.Dimension)
	fmt.Fprintf(out, "Chunk size:       %d\n", m.ChunkSize)
	fmt.Fprintf(out, "Embedding model:  %s\n", m.EmbeddingModel)
	fmt.Fprintf(out, "Checksum:         %s\n", m.Checksum)
	fmt.Fprintf(out, "Created:          %s\n", m.CreatedAt.Local().Format(time.RFC3339))
	return nil
}
