// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/maple-pod/maplepod/internal/api"
	"github.com/maple-pod/maplepod/internal/app/download"
	"github.com/maple-pod/maplepod/internal/app/nowplaying"
	"github.com/maple-pod/maplepod/internal/app/player"
	"github.com/maple-pod/maplepod/internal/infra/beepaudio"
	"github.com/maple-pod/maplepod/internal/infra/cache"
	"github.com/maple-pod/maplepod/internal/infra/config"
	"github.com/maple-pod/maplepod/internal/infra/library"
	"github.com/maple-pod/maplepod/internal/infra/logger"
	"github.com/maple-pod/maplepod/internal/infra/record"
	"github.com/maple-pod/maplepod/internal/infra/store"
)

var (
	app        = kingpin.New("maplepod-server", "Maple Pod music player server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	offline    = app.Flag("offline", "Restrict playback to cached tracks").Bool()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Output: "stdout", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}
	if *offline {
		cfg.Library.OfflineOnly = true
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open saved user data: %w", err)
	}

	blobCache, err := cache.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open offline cache: %w", err)
	}
	defer blobCache.Close()

	lib := library.New(library.Options{
		DataURL:      cfg.Library.DataURL,
		AudioBaseURL: cfg.Library.AudioBaseURL,
		FetchTimeout: cfg.FetchTimeout(),
		OfflineOnly:  cfg.Library.OfflineOnly,
		Cache:        blobCache,
		AudioDir:     filepath.Join(cfg.Storage.DataDir, "audio"),
	})
	if err := lib.Refresh(ctx); err != nil {
		if !cfg.Library.OfflineOnly {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		zlog.Warn().Err(err).Msg("Catalog fetch failed, continuing with cached tracks only")
	}

	downloads := download.New(blobCache, lib.FetchAudio, cfg.Downloads.Concurrency)
	defer downloads.Close()

	media := beepaudio.New()
	p := player.New(player.Options{
		Media:         media,
		ResolveSource: lib.Resolve,
		IsDisabled:    lib.IsDisabled,
		LookupTrack:   lib.Lookup,
		NowPlaying:    nowplaying.NewLogSession(),
		Preferences:          st.Preferences(),
		OnPreferencesChanged: st.SetPreferences,
		Config: player.Config{
			LoadDebounce:     cfg.LoadDebounce(),
			RestartThreshold: cfg.RestartThreshold(),
		},
	})
	defer p.Close()

	recordClient := record.New(record.Options{
		BaseURL:     cfg.Record.BaseURL,
		HeaderKey:   cfg.Record.HeaderKey,
		HeaderValue: cfg.Record.HeaderValue,
		Timeout:     cfg.RecordTimeout(),
	})

	server := api.New(api.Options{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Player:         p,
		Store:          st,
		Library:        lib,
		Cache:          blobCache,
		Downloads:      downloads,
		Record:         recordClient,
	})

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
		cancel()
		<-serverErrCh
	case err := <-serverErrCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	zlog.Info().Msg("Server stopped")
	return nil
}
