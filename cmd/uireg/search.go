package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vango-dev/uireg/internal/config"
	"github.com/vango-dev/uireg/internal/search"
	"github.com/vango-dev/uireg/internal/store"
)

func searchCmd(load func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a command palette query",
		Long: `Run a command palette query against the configured search backend
and print the matching navigation items and components.

Examples:
  uireg search button`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runSearch(cmd.Context(), cmd.OutOrStdout(), cfg, args[0])
		},
	}
	return cmd
}

func runSearch(ctx context.Context, out io.Writer, cfg *config.Config, query string) error {
	sections, err := search.LoadSections(cfg.SectionsPath())
	if err != nil {
		return err
	}

	var searcher search.Searcher
	if cfg.Search.RemoteURL != "" {
		searcher = search.NewRemoteClient(cfg.Search.RemoteURL, cfg.Search.APIKey, nil)
	} else {
		db, err := store.Open(ctx, cfg.DatabasePath(), store.WithSearchLimit(cfg.Search.Limit))
		if err != nil {
			return err
		}
		defer db.Close()
		searcher = db
	}

	resp := search.NewPalette(searcher, sections, search.WithCacheTTL(0), search.WithLimit(cfg.Search.Limit)).
		Query(ctx, query)

	for _, s := range resp.Sections {
		fmt.Fprintf(out, "%s\n", s.Title)
		for _, item := range s.Items {
			fmt.Fprintf(out, "  %-30s %s\n", item.Title, item.Href)
		}
	}
	if resp.Error != "" {
		warn("Component search failed: %s", resp.Error)
		return nil
	}
	if len(resp.Components) == 0 {
		info("No components match %q", query)
		return nil
	}
	fmt.Fprintln(out, "Components")
	for _, c := range resp.Components {
		fmt.Fprintf(out, "  %-30s %s\n", c.Name, c.Path())
	}
	return nil
}
