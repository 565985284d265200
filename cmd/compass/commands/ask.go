package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coursecompass/compass-go/internal/answer"
	"github.com/coursecompass/compass-go/internal/embedder"
	"github.com/coursecompass/compass-go/internal/logging"
	"github.com/coursecompass/compass-go/internal/prompt"
	"github.com/coursecompass/compass-go/internal/search"
)

// NewAskCmd constructs the `compass ask` command, which retrieves relevant
// course material and generates a grounded answer with citations.
func NewAskCmd() *cobra.Command {
	var courseID int64

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about your course material",
		Long: `Retrieve the most relevant chunks for a question, assemble them into a
prompt, and generate an answer with Gemini. The answer cites the files and
locations the retrieved material came from.

Required environment variables:
  GOOGLE_API_KEY   Gemini API key
  GEMINI_MODEL     Optional model override (default: ` + answer.DefaultModel + `)

Examples:
  compass ask "what topics does the midterm cover?"
  compass ask --course 4213 "explain the proof from lecture 7"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			gen, err := answer.NewGemini(ctx, "", getEnvOrDefault("GEMINI_MODEL", ""))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ask: failed to initialise embedder: %w", err)
			}

			idx, err := newIndex()
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer func() { _ = idx.Close() }()

			srch := search.New(idx, emb)
			question := strings.Join(args, " ")

			chunks, err := srch.Search(ctx, question, search.Options{
			Limit:    search.DefaultLimit,
			Window:   search.DefaultWindow,
			Alpha:    search.DefaultAlpha,
			CourseID: courseID,
		})
			if err != nil {
				return fmt.Errorf("ask: retrieve context: %w", err)
			}

			maxChunks := prompt.MaxChunks(search.DefaultLimit, search.DefaultWindow)
			assembled := prompt.Assemble(question, chunks, maxChunks)

			text, err := gen.Generate(ctx, assembled)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(text)

			if len(chunks) > 0 {
				fmt.Println("\nSources:")
				seen := make(map[string]bool)
				for _, c := range chunks {
					source := c.FileName
					if c.SourceLocation != "" {
						source = fmt.Sprintf("%s (%s)", c.FileName, c.SourceLocation)
					}
					if !seen[source] {
						seen[source] = true
						fmt.Printf("  - %s\n", source)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&courseID, "course", 0, "Restrict retrieval to one course ID")

	return cmd
}
