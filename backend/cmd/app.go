package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/adwski/webrtc-signal-relay/backend/config"
	"github.com/adwski/webrtc-signal-relay/backend/metrics"
	httpServer "github.com/adwski/webrtc-signal-relay/backend/server/http"
	websocketServer "github.com/adwski/webrtc-signal-relay/backend/server/websocket"
	"github.com/adwski/webrtc-signal-relay/backend/service"
	store "github.com/adwski/webrtc-signal-relay/backend/storage/memory"
	sw "github.com/adwski/webrtc-signal-relay/backend/switch"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := config.LoadEnvFile(".env"); err != nil {
		logger.Fatal().Err(err).Msg("failed to load environment")
	}
	cfg, err := config.Parse(os.Args[1:], os.Getenv)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse configuration")
	}
	logger = logger.Level(cfg.LogLevel)

	var (
		registry = store.NewMemStore()
		mtr      = metrics.New()
	)
	mtr.TrackChannels(registry.Channels)

	svc := service.NewService(service.Config{
		Router: sw.NewSwitch(sw.Config{
			Logger:   &logger,
			Registry: registry,
			Metrics:  mtr,
		}),
		Metrics: mtr,
		Logger:  &logger,
	})
	httpSrv := httpServer.NewServer(httpServer.Config{
		Logger:         &logger,
		Registry:       registry,
		MetricsHandler: mtr.Handler(),
		ListenAddr:     cfg.APIListenAddr,
	})
	wsSrv := websocketServer.NewServer(websocketServer.Config{
		Logger:           &logger,
		SignalingService: svc,
		ListenAddr:       cfg.WSListenAddr,
		SendQueueSize:    cfg.SendQueueSize,
		MaxMessageSize:   cfg.MaxMessageSize,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 2)
	)
	wg.Add(2)
	go httpSrv.Run(ctx, wg, errc)
	go wsSrv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
}
