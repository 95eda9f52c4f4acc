package commands

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"hotel_scraper/internal/domain"
	"hotel_scraper/internal/shared"
)

func init() {
	rootCmd.AddCommand(sitesCmd)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Lists the configured source sites.",
	Run: func(cmd *cobra.Command, args []string) {
		sites, err := shared.LoadSites(cfg.SitesFile)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load sites")
		}
		renderSites(cmd.OutOrStdout(), sites)
	},
}

func renderSites(w io.Writer, sites map[string]domain.SiteConfig) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Site", "Strategy", "Collection", "Base URL", "Dedup", "Lang"})
	for _, name := range shared.SiteNames(sites) {
		s := sites[name]
		t.AppendRow(table.Row{s.Name, s.Strategy, s.Collection, s.BaseURL, s.DedupField, s.SourceLang + "→" + s.TargetLang})
	}
	t.Render()
}
