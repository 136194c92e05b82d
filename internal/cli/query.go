package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/pbs-retrieval/internal/bootstrap"
	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
	"github.com/kirillkom/pbs-retrieval/internal/core/usecase"
	"github.com/kirillkom/pbs-retrieval/internal/observability/logging"
)

var (
	queryTopK     int
	queryRerank   bool
	queryJSONMode bool
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Run hybrid retrieval against the configured backends",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		logger := logging.New(os.Stderr, currentConfig.ServiceName, currentConfig.LogLevel)

		app, err := bootstrap.New(ctx, currentConfig, logger)
		if err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		defer app.Close()

		cfg := app.RetrievalDefaults()
		if cmd.Flags().Changed("top-k") {
			cfg.FinalTopK = queryTopK
		}
		if cmd.Flags().Changed("rerank") {
			cfg.RerankEnabled = queryRerank
		}

		result, err := app.Retriever.Retrieve(ctx, strings.Join(args, " "), cfg)
		if err != nil {
			return err
		}
		if queryJSONMode {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		printResult(cmd.OutOrStdout(), result)
		return nil
	},
}

func printResult(w io.Writer, result *domain.RetrievalResult) {
	filter, _ := json.Marshal(result.Filter)
	fmt.Fprintf(w, "query:    %s\n", result.Query)
	fmt.Fprintf(w, "filter:   %s\n", filter)
	fmt.Fprintf(w, "backends: vector=%s lexical=%s rerank=%s\n",
		result.Backends.Vector, result.Backends.Lexical, result.Backends.Rerank)
	if result.Status == domain.RetrievalStatusNoRelevantPassages {
		fmt.Fprintln(w, "no relevant passages found")
		return
	}
	for _, c := range usecase.BuildCitations(result.Passages) {
		fmt.Fprintf(w, "\n[%d] %s (%s)\n    %s\n", c.Number, c.Title, c.DocumentID, c.Excerpt)
		if c.OnlineURL != "" {
			fmt.Fprintf(w, "    %s\n", c.OnlineURL)
		}
	}
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 5, "number of passages to return")
	queryCmd.Flags().BoolVar(&queryRerank, "rerank", false, "rerank candidates with the cross-encoder")
	queryCmd.Flags().BoolVar(&queryJSONMode, "json", false, "print the raw result as JSON")
	rootCmd.AddCommand(queryCmd)
}
