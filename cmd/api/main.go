package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "hotel_scraper/internal/adapters/http_server"
	"hotel_scraper/internal/adapters/observability"
	redisad "hotel_scraper/internal/adapters/redis"
	"hotel_scraper/internal/app"
	"hotel_scraper/internal/domain"
	"hotel_scraper/internal/shared"
	"hotel_scraper/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	sites, err := shared.LoadSites(cfg.SitesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load sites")
	}
	list := make([]domain.SiteConfig, 0, len(sites))
	for _, name := range shared.SiteNames(sites) {
		list = append(list, sites[name])
	}

	stores, closeStores, err := storage.Open(ctx, cfg, list)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open record store")
	}
	defer closeStores()

	// deps
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		c := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer c.Close()
		cache = c
	} else {
		log.Warn().Msg("REDIS_ADDR is empty, caching disabled")
	}
	q := app.NewQueryService(stores, cache, cfg.CacheTTL)

	// http
	srv := server.New(15 * time.Second)
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(sctx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Strs("sites", shared.SiteNames(sites)).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
