package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var askTopK int

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "Number of chunks to retrieve (0 uses the server default)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	answer, err := services.Engine.Answer(cmd.Context(), strings.Join(args, " "), askTopK)
	if err != nil {
		return err
	}

	cmd.Println(answer.Text)
	if len(answer.Sources) > 0 {
		cmd.Println("\nSources:")
		for i, s := range answer.Sources {
			cmd.Printf("  %d. %s (score %.3f)\n", i+1, s.Source, s.Score)
		}
	}
	cmd.Printf("\n(%.2fs)\n", answer.Elapsed.Seconds())
	return nil
}
