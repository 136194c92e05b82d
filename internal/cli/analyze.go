package cli

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
	"github.com/kirillkom/pbs-retrieval/internal/core/usecase"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <query>",
	Short: "Print the entities and metadata filter extracted from a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		analyzer := usecase.NewQueryAnalyzer(usecase.AnalyzerConfig{
			Countries:   currentConfig.ExtractCountries,
			Phases:      currentConfig.ExtractPhases,
			SurveyTypes: currentConfig.ExtractSurveyTypes,
			Years:       currentConfig.ExtractYears,
		})
		query := strings.Join(args, " ")
		entities := analyzer.Analyze(query)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Query    string                `json:"query"`
			Entities domain.QueryEntities  `json:"entities"`
			Filter   domain.MetadataFilter `json:"filter"`
		}{
			Query:    query,
			Entities: entities,
			Filter:   domain.FilterFromEntities(entities),
		})
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
