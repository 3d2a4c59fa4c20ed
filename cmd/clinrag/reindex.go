package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// indexRebuilder is a backend whose search index can be rebuilt in place.
type indexRebuilder interface {
	RebuildIndex(ctx context.Context) error
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Drop and recreate the chunk search index",
	Long: `Drops the chunk search index and creates it again from the configured
embedding dimensions and HNSW settings. Stored chunks are kept and indexed again
by the backend. Run it after changing the embedding model or the HNSW parameters.

Only the redis driver keeps a separate search index.`,
	Args: cobra.NoArgs,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	r, ok := a.store.(indexRebuilder)
	if !ok {
		return fmt.Errorf("driver %q has no search index to rebuild", cfg.Database.Driver)
	}
	if err := r.RebuildIndex(cmd.Context()); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	logger.Info("chunk index rebuilt", zap.String("db_driver", cfg.Database.Driver))
	cmd.Println("Index rebuilt.")
	return nil
}
