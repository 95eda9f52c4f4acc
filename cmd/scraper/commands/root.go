package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"hotel_scraper/internal/adapters/observability"
	"hotel_scraper/internal/shared"
)

var cfg shared.Config

var rootCmd = &cobra.Command{
	Use:   "hotel-scraper",
	Short: "hotel-scraper collects versioned hotel descriptions and prices from golf travel sites.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = shared.Load()
		// console in dev, JSON otherwise
		log.Logger = observability.NewLogger(cfg.AppEnv)
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
