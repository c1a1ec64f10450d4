package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/edumarques81/stellar-online/internal/config"
	"github.com/edumarques81/stellar-online/internal/domain/artwork"
	"github.com/edumarques81/stellar-online/internal/domain/browse"
	"github.com/edumarques81/stellar-online/internal/domain/control"
	"github.com/edumarques81/stellar-online/internal/domain/player"
	"github.com/edumarques81/stellar-online/internal/infra/catalogdb"
	"github.com/edumarques81/stellar-online/internal/infra/metrics"
	"github.com/edumarques81/stellar-online/internal/infra/mpd"
	"github.com/edumarques81/stellar-online/internal/infra/speaker"
	"github.com/edumarques81/stellar-online/internal/infra/storage"
	"github.com/edumarques81/stellar-online/internal/transport/rest"
	"github.com/edumarques81/stellar-online/internal/transport/socketio"
	"github.com/edumarques81/stellar-online/internal/version"
)

// coverCacheSize is the number of decoded covers kept in memory.
const coverCacheSize = 512

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and Socket.IO server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, map[string]string{
				"server.port":    "port",
				"player.backend": "player",
			})
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
	cmd.Flags().Int("port", 3000, "HTTP server port")
	cmd.Flags().String("player", config.PlayerMPD, "Playback backend: mpd, speaker or none")
	return cmd
}

// media is an opened playback backend.
type media struct {
	player.Media
	health func(context.Context) error
	close  func()
}

func openMedia(ctx context.Context, cfg *config.Config) (*media, error) {
	switch cfg.Player.Backend {
	case config.PlayerMPD:
		mc := cfg.Player.MPD
		client := mpd.NewClient(mc.Host, mc.Port, mc.Password)
		if err := client.Connect(); err != nil {
			return nil, fmt.Errorf("connect to MPD: %w", err)
		}
		if err := client.Ping(); err != nil {
			client.Close()
			return nil, fmt.Errorf("MPD ping: %w", err)
		}
		log.Info().Str("host", mc.Host).Int("port", mc.Port).Msg("MPD connection verified")

		events, err := client.Watch("player")
		if err != nil {
			client.Close()
			return nil, err
		}
		p := mpd.NewPlayer(client)
		go p.Run(ctx, events)

		return &media{
			Media:  p,
			health: func(context.Context) error { return client.Ping() },
			close:  func() { client.Close() },
		}, nil

	case config.PlayerSpeaker:
		p, err := speaker.New(&http.Client{Timeout: 2 * time.Minute})
		if err != nil {
			return nil, err
		}
		return &media{Media: p, close: func() { p.Stop() }}, nil

	case config.PlayerNone:
		log.Warn().Msg("Playback backend is none, tracks will not produce sound")
		return &media{Media: &player.SilentMedia{}, close: func() {}}, nil
	}
	return nil, fmt.Errorf("unknown player backend %q", cfg.Player.Backend)
}

func serve(cfg *config.Config) error {
	versionInfo := version.GetInfo()
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", versionInfo.String())
	log.Info().Msg("  Music Catalog and Playback Server")
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().
		Int("port", cfg.Server.Port).
		Str("catalog", cfg.Catalog.DBPath).
		Str("storage", cfg.Storage.Provider).
		Str("player", cfg.Player.Backend).
		Msg("Configuration")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := catalogdb.NewDB(cfg.Catalog.DBPath)
	if err := db.Open(); err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer db.Close()
	store := catalogdb.NewStore(db, catalogdb.WithMinFacetCount(cfg.Browse.MinFacetCount))

	id, err := openIdentity(cfg)
	if err != nil {
		return err
	}
	log.Info().Str("name", id.Info().Name).Str("uuid", id.Info().UUID).Msg("Instance identity")

	blobs, blobHandler, err := storage.Open(cfg)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	out, err := openMedia(ctx, cfg)
	if err != nil {
		return err
	}
	defer out.close()

	m := metrics.New()

	engine := player.NewEngine(out, player.AudioResolverFunc(blobs.URL))
	stopWatch := m.WatchPlayback(engine)
	defer stopWatch()

	fetcher := artwork.NewFetcher(blobs, artwork.ThumbnailSize(cfg.Browse.CoverSize), coverCacheSize)
	covers := browse.NewCoverLoader(m.InstrumentFetcher(fetcher), cfg.Browse.CoverConcurrency)

	nav := browse.NewNavigator(m.InstrumentCatalog(store),
		browse.WithConfig(browse.Config{
			PageSize:       cfg.Browse.PageSize,
			LikedPageSize:  cfg.Browse.LikedPageSize,
			NewSongsWindow: cfg.Browse.NewSongsWindow,
			SearchDelay:    cfg.Browse.SearchDelay,
		}),
		browse.WithCovers(covers),
		browse.WithPreferences(store),
		browse.WithBlobs(blobs),
		browse.WithLikeListener(engine),
	)
	defer nav.Close()

	if err := nav.LoadRandomSongs(ctx); err != nil {
		log.Error().Err(err).Msg("Initial song load failed")
	}

	ctl := control.New(nav, engine)

	sopts := socketio.DefaultOptions()
	sopts.MaxExternal = cfg.Server.MaxExternalClients
	socketServer, err := socketio.NewServer(ctl, engine, nav, sopts)
	if err != nil {
		return fmt.Errorf("create Socket.io server: %w", err)
	}
	defer socketServer.Close()

	deps := rest.Deps{
		Controller: ctl,
		Engine:     engine,
		Navigator:  nav,
		Catalog:    db,
		Identity:   id,
		Socket:     socketServer,
		Blobs:      blobHandler,
		Metrics:    m.Handler(),
	}
	if out.health != nil {
		deps.Checks = map[string]func(context.Context) error{cfg.Player.Backend: out.health}
	}
	ropts := rest.DefaultOptions()
	ropts.Debug = cfg.Log.Debug
	api := rest.New(deps, ropts)

	// No write timeout: audio blobs stream for as long as a track lasts.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server: %w", err)
	}

	engine.Stop()
	log.Info().Msg("Server stopped")
	return nil
}
