package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coursecompass/compass-go/internal/embedder"
	"github.com/coursecompass/compass-go/internal/logging"
	"github.com/coursecompass/compass-go/internal/search"
)

// NewSearchCmd constructs the `compass search` command, which retrieves the
// most relevant chunks for a query and prints them with their sources.
func NewSearchCmd() *cobra.Command {
	var courseID int64
	var limit int
	var window int
	var alpha float32

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search indexed course material",
		Long: `Run a hybrid (vector + keyword) search over the indexed chunks and print
the matches with their file and location. Each hit is expanded with its
neighbouring chunks for context; disable with --window=0.

Examples:
  compass search "eigenvalue decomposition"
  compass search --course 4213 "assignment 2 deadline"
  compass search --alpha 1 "purely semantic match"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("search: failed to initialise embedder: %w", err)
			}

			idx, err := newIndex()
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer func() { _ = idx.Close() }()

			srch := search.New(idx, emb)
			query := strings.Join(args, " ")

			hits, err := srch.Search(ctx, query, search.Options{
				Limit:    limit,
				Window:   window,
				Alpha:    alpha,
				CourseID: courseID,
			})
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if len(hits) == 0 {
				fmt.Println("No results.")
				return nil
			}

			for _, hit := range hits {
				source := hit.FileName
				if hit.SourceLocation != "" {
					source = fmt.Sprintf("%s (%s)", hit.FileName, hit.SourceLocation)
				}
				fmt.Printf("--- %s [score %.3f]\n%s\n\n", source, hit.Score, hit.Text)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&courseID, "course", 0, "Restrict the search to one course ID")
	cmd.Flags().IntVarP(&limit, "limit", "n", search.DefaultLimit, "Maximum number of direct hits")
	cmd.Flags().IntVarP(&window, "window", "w", search.DefaultWindow, "Neighbouring chunks to include per hit (0 disables)")
	cmd.Flags().Float32Var(&alpha, "alpha", search.DefaultAlpha, "Hybrid blend: 0 = keyword only, 1 = vector only")

	return cmd
}
