package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewCoursesCmd constructs the `compass courses` command, which lists the
// courses recorded in the local catalog.
func NewCoursesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "courses",
		Short: "List the courses in the local catalog",
		Long: `List the courses recorded by 'compass sync', with their IDs and last
sync time. Use the ID with 'compass ingest --course' or the --course filter
on search and ask.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cat, err := openCatalog()
			if err != nil {
				return fmt.Errorf("courses: %w", err)
			}
			defer func() { _ = cat.Close() }()

			courses, err := cat.Courses(ctx)
			if err != nil {
				return fmt.Errorf("courses: %w", err)
			}
			if len(courses) == 0 {
				fmt.Println("No courses in catalog — run 'compass sync' first.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSYNCED")
			for _, c := range courses {
				fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.Name, c.SyncedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}
