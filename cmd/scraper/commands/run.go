package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"hotel_scraper/internal/adapters/browser"
	"hotel_scraper/internal/adapters/observability"
	redisad "hotel_scraper/internal/adapters/redis"
	"hotel_scraper/internal/adapters/translate"
	"hotel_scraper/internal/adapters/web"
	"hotel_scraper/internal/app"
	"hotel_scraper/internal/domain"
	"hotel_scraper/internal/shared"
	"hotel_scraper/internal/storage"
)

var (
	runSite    *string
	runInput   *string
	runWorkers *int
)

func init() {
	runSite = runCmd.Flags().String("site", "", "Source site to scrape (see `hotel-scraper sites`).")
	runInput = runCmd.Flags().String("input", "hotels.json", "JSON array of hotel names.")
	runWorkers = runCmd.Flags().Int("workers", 0, "Concurrent hotels; defaults to SCRAPE_WORKERS.")
	_ = runCmd.MarkFlagRequired("site")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run --site <name> [--input hotels.json]",
	Short: "Scrapes every hotel in the input list from one site and stores a new version of each.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		workers := cfg.Workers
		if *runWorkers > 0 {
			workers = *runWorkers
		}

		sites, err := shared.LoadSites(cfg.SitesFile)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load sites")
		}
		site, ok := sites[*runSite]
		if !ok {
			log.Fatal().Str("site", *runSite).Strs("known", shared.SiteNames(sites)).Msg("unknown site")
		}
		names, err := shared.LoadHotelNames(*runInput)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load hotel list")
		}

		stores, closeStores, err := storage.Open(ctx, cfg, []domain.SiteConfig{site})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open record store")
		}
		defer closeStores()

		cache := openCache(ctx)
		observability.Serve(cfg.MetricsAddr)

		deps := app.PipelineDeps{
			Site:    site,
			Fetcher: web.New(cfg.FetchTimeout, cfg.FetchRPS, cfg.UserAgent),
			Norm: app.NewTextNormalizer(translate.New(cfg.TranslateURL, cfg.TranslateTimeout), app.NormalizerOptions{
				MaxChars: cfg.TranslateMaxChars,
				Timeout:  cfg.TranslateTimeout,
				Retries:  cfg.TranslateRetries,
				Cache:    cache,
				CacheTTL: cfg.TranslateCacheTTL,
			}),
			Store:   stores[site.Name],
			Cache:   cache,
			RunID:   uuid.NewString(),
			Workers: workers,
		}
		if site.Rendered() {
			pool, err := browser.NewPool(ctx, workers, cfg.Headless, cfg.UserAgent)
			if err != nil {
				log.Fatal().Err(err).Msg("failed to start browser")
			}
			defer pool.Close()
			deps.Renderer = pool
		}

		p, err := app.NewPipeline(deps)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build pipeline")
		}
		renderSummary(cmd.OutOrStdout(), p.Run(ctx, names))
	},
}

// openCache returns nil when Redis is unset or unreachable; the run proceeds uncached.
func openCache(ctx context.Context) domain.Cache {
	if cfg.RedisAddr == "" {
		log.Warn().Msg("REDIS_ADDR is empty, caching disabled")
		return nil
	}
	c := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.Ping(pctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, caching disabled")
		_ = c.Close()
		return nil
	}
	return c
}

func renderSummary(w io.Writer, s app.Summary) {
	t := newTable(w)
	t.SetTitle(fmt.Sprintf("%s  run %s  (%s)", s.Site, s.RunID, s.Elapsed.Round(time.Millisecond)))
	t.AppendHeader(table.Row{"Hotel", "State", "Version", "URL"})
	for _, o := range s.Outcomes {
		version := ""
		if o.Version > 0 {
			version = fmt.Sprint(o.Version)
		}
		t.AppendRow(table.Row{o.Name, o.State, version, o.URL})
	}
	t.AppendSeparator()
	for _, st := range app.States {
		if n := s.Counts[st]; n > 0 {
			t.AppendFooter(table.Row{st, n})
		}
	}
	t.Render()
}
