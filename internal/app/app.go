package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/townsquare/server/internal/controller"
	"github.com/townsquare/server/internal/service/towns"
	"github.com/townsquare/server/internal/streaming"
	"github.com/townsquare/server/internal/video"
	"github.com/townsquare/server/pkg/ctxlogger"
)

type AppConfig struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	LogLevel        string `json:"log_level"`
	DemoTownID      string `json:"demo_town_id"`
	TownCapacity    int    `json:"town_capacity"`
	StreamingAPIURL string `json:"streaming_api_url"`
	VideoAPIKey     string `json:"video_api_key"`
	VideoAPISecret  string `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.TownCapacity < 1 {
		return fmt.Errorf("town capacity must be greater than 0")
	}
	if cfg.VideoAPISecret == "" {
		return fmt.Errorf("video api secret must be set")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		log.Fatal(err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	logger := slog.New(&h)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	videoClient, err := video.NewClient(&video.Config{
		APIKey:    cfg.VideoAPIKey,
		APISecret: cfg.VideoAPISecret,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create video client: %w", err)
	}

	// One token store and one streaming client serve every town in the
	// process.
	tokenStore := streaming.NewTokenStore()
	streamingClient := streaming.NewClient(&streaming.Config{
		APIURL: cfg.StreamingAPIURL,
	}, tokenStore, logger)

	townsService := towns.NewService(videoClient, streamingClient, logger, &towns.Config{
		DemoTownID:      cfg.DemoTownID,
		DefaultCapacity: cfg.TownCapacity,
	})
	controller := controller.NewController(townsService, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: controller.GetMux()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
