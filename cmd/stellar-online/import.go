package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/edumarques81/stellar-online/internal/config"
	"github.com/edumarques81/stellar-online/internal/infra/catalogdb"
	"github.com/edumarques81/stellar-online/internal/infra/importer"
	"github.com/edumarques81/stellar-online/internal/infra/storage"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Import audio files from a directory into the catalog",
		Long: "Scans dir for audio files, uploads them and their embedded cover art " +
			"to the blob store, and records songs and facets in the catalog.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, map[string]string{})
			if err != nil {
				return err
			}
			source, _ := cmd.Flags().GetString("source")
			return runImport(cfg, args[0], source)
		},
	}
	cmd.Flags().String("source", "", "Source name recorded on every song (default: the directory name)")
	return cmd
}

func runImport(cfg *config.Config, dir, source string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := catalogdb.NewDB(cfg.Catalog.DBPath)
	if err := db.Open(); err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer db.Close()

	if _, err := openIdentity(cfg); err != nil {
		return err
	}
	blobs, _, err := storage.Open(cfg)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	start := time.Now()
	res, err := importer.New(catalogdb.NewStore(db), blobs, source).Run(ctx, dir)
	log.Info().
		Int("scanned", res.Scanned).
		Int("imported", res.Imported).
		Int("covers", res.Covers).
		Int("failed", res.Failed).
		Dur("took", time.Since(start)).
		Msg("Import finished")
	if err != nil {
		return err
	}

	if err := db.MarkImportComplete(); err != nil {
		return fmt.Errorf("record import: %w", err)
	}
	stats, err := db.Stats(ctx)
	if err == nil {
		log.Info().
			Int("songs", stats.SongCount).
			Int("facets", stats.FacetCount).
			Msg("Catalog totals")
	}
	return nil
}
