package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"postcrawler/pkg/crawler"
	"postcrawler/pkg/models"
	"postcrawler/pkg/store"
	"postcrawler/pkg/ui"
)

var (
	// Sources command flags
	sourceName     string
	sourceGroup    string
	sourcePriority int
	sourceInactive bool
)

// sourcesCmd represents the sources command
var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage the crawl source list",
}

// sourcesListCmd represents the sources list command
var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List Active sources in crawl order",
	Args:  cobra.NoArgs,
	RunE:  runSourcesList,
}

// sourcesAddCmd represents the sources add command
var sourcesAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add a profile or organization page to crawl",
	Example: `  postcrawler sources add https://www.linkedin.com/in/someone --group founders --priority 1
  postcrawler sources add https://www.linkedin.com/company/acme --name "Acme Inc"`,
	Args: cobra.ExactArgs(1),
	RunE: runSourcesAdd,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesAddCmd)

	sourcesAddCmd.Flags().StringVar(&sourceName, "name", "", "display name (default derived from the URL)")
	sourcesAddCmd.Flags().StringVar(&sourceGroup, "group", "", "group label copied onto saved posts")
	sourcesAddCmd.Flags().IntVar(&sourcePriority, "priority", 0, "crawl order, lowest first")
	sourcesAddCmd.Flags().BoolVar(&sourceInactive, "inactive", false, "add the source without crawling it")
}

func runSourcesList(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := store.Open(cmd.Context(), cfg.Store, log)
	if err != nil {
		return err
	}
	defer st.Close()

	sources, err := st.ActiveSources(cmd.Context())
	if err != nil {
		return err
	}
	ui.Print(ui.RenderSources(sources))
	return nil
}

func runSourcesAdd(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := store.Open(cmd.Context(), cfg.Store, log)
	if err != nil {
		return err
	}
	defer st.Close()

	admin, ok := st.(store.SourceAdmin)
	if !ok {
		return fmt.Errorf("store driver %s does not support adding sources", cfg.Store.Driver)
	}

	target := strings.TrimSpace(args[0])
	src := models.Source{
		DisplayName: sourceName,
		TargetURL:   target,
		Group:       sourceGroup,
		Priority:    sourcePriority,
		Status:      models.SourceActive,
	}
	if src.DisplayName == "" {
		src.DisplayName = crawler.NameFromURL(target)
	}
	if sourceInactive {
		src.Status = models.SourceInactive
	}

	added, err := admin.AddSource(cmd.Context(), src)
	if err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Source added: %s (%s)", added.DisplayName, added.ID))
	return nil
}
