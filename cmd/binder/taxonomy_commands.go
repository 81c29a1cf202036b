package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"binder/internal/api"
	"binder/internal/logging"
	"binder/internal/taxonomy"
)

func newTaxonomyCommand(ctx *commandContext) *cobra.Command {
	taxonomyCmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Inspect the attribute vocabulary",
	}

	taxonomyCmd.AddCommand(newTaxonomyShowCommand(ctx))
	taxonomyCmd.AddCommand(newTaxonomyRefreshCommand(ctx))

	return taxonomyCmd
}

func newTaxonomyShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show [group]",
		Short: "Show taxonomy groups and their options",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			response, err := fetchTaxonomy(ctx, cmd, false)
			if err != nil {
				return err
			}

			groupFilter := ""
			if len(args) > 0 {
				groupFilter = strings.TrimSpace(args[0])
			}

			if ctx.jsonMode() {
				if groupFilter != "" {
					response.Groups = filterTaxonomyGroups(response.Groups, groupFilter)
				}
				return writeJSON(cmd, response)
			}
			return printTaxonomy(cmd, response, groupFilter)
		},
	}
}

func newTaxonomyRefreshCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reload the taxonomy from its configured source",
		RunE: func(cmd *cobra.Command, args []string) error {
			response, err := fetchTaxonomy(ctx, cmd, true)
			if err != nil {
				return err
			}
			if ctx.jsonMode() {
				return writeJSON(cmd, response)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Taxonomy refreshed from %s (%d groups)\n", taxonomySourceName(response.Source), len(response.Groups))
			return nil
		},
	}
}

// fetchTaxonomy prefers the daemon's cached snapshot and falls back to
// loading the source directly when no daemon is reachable.
func fetchTaxonomy(ctx *commandContext, cmd *cobra.Command, refresh bool) (api.TaxonomyResponse, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return api.TaxonomyResponse{}, err
	}

	if client, dialErr := ctx.dialDaemon(cmd.Context()); dialErr == nil {
		if refresh {
			return client.RefreshTaxonomy(cmd.Context())
		}
		return client.Taxonomy(cmd.Context())
	}

	loader := taxonomy.NewLoader(cfg.Taxonomy.SourcePath, logging.NewNop())
	var snapshot *taxonomy.Snapshot
	if refresh {
		snapshot, err = loader.Load(cmd.Context())
	} else {
		snapshot, err = loader.Ensure(cmd.Context())
	}
	if err != nil {
		return api.TaxonomyResponse{}, fmt.Errorf("load taxonomy: %w", err)
	}
	return api.FromSnapshot(snapshot), nil
}

func printTaxonomy(cmd *cobra.Command, response api.TaxonomyResponse, groupFilter string) error {
	out := cmd.OutOrStdout()

	groups := response.Groups
	if groupFilter != "" {
		groups = filterTaxonomyGroups(groups, groupFilter)
		if len(groups) == 0 {
			return fmt.Errorf("taxonomy group %q not found", groupFilter)
		}
	}

	fmt.Fprintf(out, "Source: %s\n", taxonomySourceName(response.Source))
	if response.FetchedAt != "" {
		fmt.Fprintf(out, "Fetched: %s\n", formatDisplayTime(response.FetchedAt))
	}
	fmt.Fprintln(out)

	for _, group := range groups {
		rows := make([][]string, 0, len(group.Options))
		for _, option := range group.Options {
			rows = append(rows, []string{option.ID, option.Label})
		}
		fmt.Fprintf(out, "%s (%s):\n", group.Name, group.ID)
		table := renderTable([]string{"Option", "Label"}, rows, []columnAlignment{alignLeft, alignLeft})
		fmt.Fprintln(out, table)
	}
	return nil
}

func filterTaxonomyGroups(groups []api.TaxonomyGroup, filter string) []api.TaxonomyGroup {
	matched := make([]api.TaxonomyGroup, 0, 1)
	for _, group := range groups {
		if strings.EqualFold(group.ID, filter) || strings.EqualFold(group.Name, filter) {
			matched = append(matched, group)
		}
	}
	return matched
}

func taxonomySourceName(source string) string {
	source = strings.TrimSpace(source)
	if source == "" {
		return "builtin"
	}
	return source
}
