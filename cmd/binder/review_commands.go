package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"binder/internal/api"
	"binder/internal/queueaccess"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Work the review queue",
	}

	reviewCmd.AddCommand(newReviewListCommand(ctx))
	reviewCmd.AddCommand(newReviewShowCommand(ctx))

	return reviewCmd
}

func newReviewListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scans awaiting review",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueAccess(cmd, func(access queueaccess.Access) error {
				items, err := access.ListReview(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					if items == nil {
						items = []api.QueueItem{}
					}
					return writeJSON(cmd, api.QueueListResponse{Items: items})
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No scans awaiting review")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						fmt.Sprintf("%d", item.ID),
						queueItemTitle(item),
						reviewReasonLabel(item.ReviewReason),
						fmt.Sprintf("%d", len(item.Candidates)),
						formatDisplayTime(item.CreatedAt),
					})
				}
				table := renderTable(
					[]string{"ID", "Title", "Reason", "Candidates", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				)
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, table)
				fmt.Fprintln(out, "Inspect a scan with 'binder review show <id>', then confirm with 'binder select <id> <candidate>'.")
				return nil
			})
		},
	}
}

func newReviewShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <itemID>",
		Short: "Show review detail for one scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}

			return ctx.withQueueAccess(cmd, func(access queueaccess.Access) error {
				item, err := access.Describe(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("item %d not found", ids[0])
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, api.QueueItemResponse{Item: *item})
				}
				printReviewDetail(cmd, item)
				return nil
			})
		},
	}
}

func printReviewDetail(cmd *cobra.Command, item *api.QueueItem) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Item #%d: %s (%s)\n", item.ID, queueItemTitle(*item), formatStatusLabel(item.Status))
	if item.NeedsReview {
		fmt.Fprintf(out, "Review reason: %s\n", reviewReasonLabel(item.ReviewReason))
	}
	if item.Progress.Message != "" {
		fmt.Fprintf(out, "Progress: %s\n", item.Progress.Message)
	}

	if fields := item.Fields; fields != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Detected fields:")
		printCardField(out, "Name", fields.Name)
		printCardField(out, "Number", fields.Number)
		printCardField(out, "Set hint", fields.SetHint)
		printCardField(out, "Rarity", fields.RarityText)
		printCardField(out, "Energy", fields.EnergyText)
		printCardField(out, "Card type", fields.CardType)
		printCardField(out, "Variant", fields.VariantText)
	}

	if len(item.Candidates) > 0 {
		fmt.Fprintln(out)
		label := "Candidates"
		if item.CandidatesRelaxed {
			label = "Candidates (relaxed search)"
		}
		fmt.Fprintf(out, "%s:\n", label)
		rows := make([][]string, 0, len(item.Candidates))
		for _, candidate := range item.Candidates {
			rows = append(rows, []string{
				candidate.ID,
				candidate.Name,
				candidateNumber(candidate),
				candidate.SetName,
				candidate.Rarity,
				formatCents(candidate.PriceCents, candidate.Currency),
			})
		}
		table := renderTable(
			[]string{"Candidate", "Name", "Number", "Set", "Rarity", "Market"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
		)
		fmt.Fprintln(out, table)
	}

	if len(item.SearchAttempts) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Search attempts:")
		for _, attempt := range item.SearchAttempts {
			fmt.Fprintf(out, "  %s %q: %d results in %dms\n", attempt.Mode, attempt.Query, attempt.Results, attempt.ElapsedMS)
		}
	}

	if len(item.Attributes) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Resolved attributes:")
		for _, key := range sortedKeys(item.Attributes) {
			fmt.Fprintf(out, "  %s: %s\n", formatStatusLabel(key), item.Attributes[key])
		}
	}

	fmt.Fprintln(out)
	switch {
	case len(item.Candidates) > 0:
		fmt.Fprintf(out, "Confirm with 'binder select %d <candidate>' or route manually with 'binder select %d none'.\n", item.ID, item.ID)
	case item.NeedsReview:
		fmt.Fprintf(out, "No candidates were found; route manually with 'binder select %d none'.\n", item.ID)
	}
}

func printCardField(out io.Writer, label string, value *string) {
	display := "-"
	if value != nil && strings.TrimSpace(*value) != "" {
		display = strings.TrimSpace(*value)
	}
	fmt.Fprintf(out, "  %s: %s\n", label, display)
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func candidateNumber(candidate api.Candidate) string {
	if candidate.NumberDisplay != "" {
		return candidate.NumberDisplay
	}
	return candidate.Number
}

func reviewReasonLabel(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "-"
	}
	return reason
}

func formatCents(cents int64, currency string) string {
	if cents <= 0 {
		return "-"
	}
	currency = strings.TrimSpace(currency)
	if currency == "" {
		currency = "USD"
	}
	return fmt.Sprintf("%.2f %s", float64(cents)/100, currency)
}
