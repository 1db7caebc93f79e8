// Command radiod is the denpa-radio process entrypoint: it wires
// persistence, the audio source adapter, the audio encoder service, the
// curator, the per-station manager, and the HTTP control surface together
// and runs until signaled, grounded on the teacher's original main.go
// graceful-shutdown shape.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/arung-agamani/denpa-radio/config"
	"github.com/arung-agamani/denpa-radio/internal/aes"
	"github.com/arung-agamani/denpa-radio/internal/asa"
	"github.com/arung-agamani/denpa-radio/internal/auth"
	"github.com/arung-agamani/denpa-radio/internal/broadcast"
	"github.com/arung-agamani/denpa-radio/internal/curator"
	"github.com/arung-agamani/denpa-radio/internal/curator/oracle"
	"github.com/arung-agamani/denpa-radio/internal/httpapi"
	"github.com/arung-agamani/denpa-radio/internal/library"
	"github.com/arung-agamani/denpa-radio/internal/pipeline"
	"github.com/arung-agamani/denpa-radio/internal/station"
	"github.com/arung-agamani/denpa-radio/internal/store"
	"github.com/arung-agamani/denpa-radio/internal/subsonic"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	slog.Info("starting denpa-radio",
		"api_addr", cfg.APIAddr,
		"subsonic_url", cfg.SubsonicURL,
		"data_dir", cfg.DataDir,
	)

	st, err := store.Open(store.Options{Dir: cfg.DataDir})
	if err != nil {
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	subsonicClient, err := subsonic.New(cfg.SubsonicURL, cfg.SubsonicUser, cfg.SubsonicPass)
	if err != nil {
		slog.Error("build subsonic client", "error", err)
		os.Exit(1)
	}

	adapter := asa.New(subsonicClient)

	pool, err := aes.NewSessionPool(cfg.InferencePoolSize, cfg.InferenceConcurrency, func() (aes.NeuralSession, error) {
		return aes.NewTFLiteSession(cfg.ModelPath, 0)
	})
	if err != nil {
		slog.Error("build inference session pool", "error", err)
		os.Exit(1)
	}

	aesSvc := aes.New(subsonicClient, pool, st, st, st)

	aiOracle := oracle.NewAnthropicOracle(cfg.AnthropicAPIKey, anthropic.Model(cfg.AnthropicModel), 1024)
	seedSelector := curator.NewSeedSelector(aiOracle, st)
	curConfig := curator.DefaultConfig()
	curConfig.SeedCount = cfg.SeedCount
	curConfig.MinEmbeddingCoverage = cfg.MinEmbeddingCoverage
	cur := curator.New(seedSelector, aesSvc, st, curConfig)

	analyzer := library.NewAnalyzer(aiOracle)
	indexer := library.New(subsonicClient, st, analyzer)

	if cfg.SubsonicUser == "" {
		slog.Info("no subsonic credentials configured, scanning local music directory", "dir", cfg.MusicDir)
		if n, err := indexer.SyncLocalDir(context.Background(), cfg.MusicDir); err != nil {
			slog.Warn("local library scan failed", "error", err)
		} else {
			slog.Info("local library scan complete", "tracks", n)
		}
	}

	authn := auth.New(auth.Config{
		Username:  cfg.DJUsername,
		Password:  cfg.DJPassword,
		JWTSecret: cfg.JWTSecret,
	})

	apConfig := pipeline.Config{
		SampleRate:    cfg.SampleRate,
		Channels:      cfg.Channels,
		BufferSeconds: cfg.BufferSeconds,
	}
	abConfig := broadcast.Config{
		SegmentDuration: time.Duration(cfg.SegmentDuration * float64(time.Second)),
		PlaylistLength:  cfg.PlaylistLength,
	}

	stations := station.New(st, st, cur, adapter, apConfig, abConfig)

	server := httpapi.New(httpapi.Config{Addr: cfg.APIAddr}, stations, aesSvc, cur, indexer, st, authn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := stations.LoadActiveStations(ctx); err != nil {
		slog.Error("load active stations", "error", err)
	}
	if err := stations.StartResyncCron(cfg.ResyncCron); err != nil {
		slog.Error("start resync cron", "error", err)
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		slog.Info("shutdown signal received")
		cancel()
		stations.StopResyncCron()
		_ = server.Shutdown()
	}()

	if err := server.Run(); err != nil && ctx.Err() == nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("denpa-radio stopped")
}
