package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	askText string
	askJSON bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer one question from the indexed documents",
	Long: `Run the full query pipeline once: embed the question, retrieve the
closest chunks, and ask the language model to answer from them.

Examples:
  docqa ask -q "How many vacation days do employees get?"`,
	Args: cobra.NoArgs,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askText, "question", "q", "", "question to answer (required)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.MarkFlagRequired("question")
}

func runAsk(cmd *cobra.Command, args []string) error {
	p, err := loadPipeline(GetConfig(), true)
	if err != nil {
		return err
	}
	defer p.Close()

	ans, err := p.answer.Answer(cmd.Context(), askText)
	if err != nil {
		return err
	}

	if askJSON {
		output, _ := json.MarshalIndent(ans, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(output))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), ans.Answer)
	return nil
}
