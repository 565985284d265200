package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/coursecompass/compass-go/internal/canvas"
	"github.com/coursecompass/compass-go/internal/catalog"
	"github.com/coursecompass/compass-go/internal/extract"
	"github.com/coursecompass/compass-go/internal/logging"
)

// NewSyncCmd constructs the `compass sync` command, which refreshes the local
// catalog from Canvas and downloads supported course files.
func NewSyncCmd() *cobra.Command {
	var courseID int64
	var skipDownload bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync course and file listings from Canvas into the local catalog",
		Long: `Fetch the course list and per-course file listings from Canvas, record
them in the local catalog, and download supported files (pptx, docx, pdf, txt)
for later ingestion.

Required environment variables:
  CANVAS_BASE_URL   Canvas instance URL (e.g. https://canvas.example.edu)
  CANVAS_TOKEN      Canvas API access token

Examples:
  compass sync
  compass sync --course 4213
  compass sync --skip-download`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			baseURL := os.Getenv("CANVAS_BASE_URL")
			token := os.Getenv("CANVAS_TOKEN")
			if baseURL == "" || token == "" {
				return fmt.Errorf("sync: CANVAS_BASE_URL and CANVAS_TOKEN must be set")
			}

			client := canvas.New(baseURL, token)

			cat, err := openCatalog()
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}
			defer func() { _ = cat.Close() }()

			dir, err := downloadDir()
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}

			courses, err := client.ListCourses(ctx)
			if err != nil {
				return fmt.Errorf("sync: list courses: %w", err)
			}
			log.Info("courses fetched", slog.Int("count", len(courses)))

			registry := extract.NewRegistry()

			var filesSeen, filesDownloaded int
			for _, course := range courses {
				if courseID != 0 && course.ID != courseID {
					continue
				}
				if err := cat.UpsertCourse(ctx, catalog.Course{ID: course.ID, Name: course.Name}); err != nil {
					return fmt.Errorf("sync: record course %d: %w", course.ID, err)
				}

				files, err := client.ListFiles(ctx, course.ID)
				if err != nil {
					// An inaccessible course (e.g. files tab disabled) should
					// not abort the rest of the sync.
					log.Warn("file listing failed",
						slog.Int64("course_id", course.ID),
						slog.String("course", course.Name),
						slog.Any("error", err),
					)
					continue
				}
				filesSeen += len(files)

				for _, file := range files {
					record := catalog.File{
						ID:          file.ID,
						CourseID:    course.ID,
						Name:        file.DisplayName,
						ContentType: file.ContentType,
					}

					if !skipDownload && registry.Supported(file.DisplayName) {
						dest := filepath.Join(dir, strconv.FormatInt(course.ID, 10), file.DisplayName)
						if err := client.Download(ctx, file, dest); err != nil {
							log.Warn("download failed",
								slog.Int64("file_id", file.ID),
								slog.String("name", file.DisplayName),
								slog.Any("error", err),
							)
						} else {
							record.LocalPath = dest
							filesDownloaded++
						}
					}

					if err := cat.UpsertFile(ctx, record); err != nil {
						return fmt.Errorf("sync: record file %d: %w", file.ID, err)
					}
				}

				log.Info("course synced",
					slog.Int64("course_id", course.ID),
					slog.String("course", course.Name),
					slog.Int("files", len(files)),
				)
			}

			log.Info("sync complete",
				slog.Int("courses", len(courses)),
				slog.Int("files", filesSeen),
				slog.Int("downloaded", filesDownloaded),
			)
			return nil
		},
	}

	cmd.Flags().Int64Var(&courseID, "course", 0, "Sync only this course ID")
	cmd.Flags().BoolVar(&skipDownload, "skip-download", false, "Record listings without downloading files")

	return cmd
}
