package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/bblog/blogbot/internal/adapter/ai"
	"github.com/bblog/blogbot/internal/adapter/store"
	"github.com/bblog/blogbot/internal/adapter/vector"
	"github.com/bblog/blogbot/internal/domain"
	"github.com/bblog/blogbot/internal/service"
	"github.com/bblog/blogbot/pkg/config"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	_ "github.com/lib/pq"
)

var reindexSince string

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Clear the vector index and re-embed every blog",
	Long: `Reindex clears the vector index and rebuilds it from the full blog
snapshot. Use it after bulk edits, since incremental sync never
re-embeds blogs that are already indexed.

With --since, only blogs created or modified within the window are
re-embedded in place and the rest of the index is left untouched.`,
	RunE: runReindex,
}

func init() {
	reindexCmd.Flags().StringVar(&reindexSince, "since", "", "re-embed only blogs modified within this window (e.g. 24h) instead of rebuilding")
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pgStore.Close()

	index := vector.NewPineconeIndex(cfg.PineconeControlURL, cfg.PineconeAPIKey, cfg.PineconeEnv, cfg.PineconeIndex, cfg.DefaultDimension)
	embedModel := ai.NewOllamaEmbedder(cfg.OllamaEmbedURL, cfg.OllamaEmbedToken)
	embedder := service.NewEmbedder(embedModel, index, cfg.EmbedModelLarge, cfg.EmbedModelSmall)
	syncSvc := service.NewSyncService(pgStore, embedder, index)

	var blogs []domain.Blog
	if reindexSince != "" {
		window, err := time.ParseDuration(reindexSince)
		if err != nil {
			return fmt.Errorf("parse --since: %w", err)
		}
		blogs, err = pgStore.GetBlogsModifiedAfter(ctx, time.Now().Add(-window))
		if err != nil {
			return fmt.Errorf("load modified blogs: %w", err)
		}
	} else {
		blogs, err = pgStore.GetAllBlogs(ctx)
		if err != nil {
			return fmt.Errorf("load blogs: %w", err)
		}
	}
	if len(blogs) == 0 {
		fmt.Println("No blogs to index.")
		return nil
	}

	bar := progressbar.NewOptions(len(blogs),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("Reindexing"),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	progress := func(done, total int) {
		_ = bar.Set(done)
	}

	if reindexSince != "" {
		if err := syncSvc.ResyncBlogs(ctx, blogs, progress); err != nil {
			return fmt.Errorf("resync modified blogs: %w", err)
		}
	} else if err := syncSvc.RebuildAll(ctx, blogs, progress); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	fmt.Printf("Reindexed %d blogs.\n", len(blogs))
	return nil
}
