package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"binder/internal/api"
	"binder/internal/queueaccess"
)

func newSelectCommand(ctx *commandContext) *cobra.Command {
	var priceCents int64
	var currency string

	cmd := &cobra.Command{
		Use:   "select <itemID> <candidate|none>",
		Short: "Confirm a candidate for a reviewed scan",
		Long: `Confirm a catalog candidate for a scan that is awaiting review.

Pass the candidate ID shown by 'binder review show', or "none" to route
the scan down the manual path. An optional price is recorded as a
hand-edited value in the same operation.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args[:1])
			if err != nil {
				return err
			}

			request := api.SelectRequest{
				CandidateID: strings.TrimSpace(args[1]),
				Currency:    currency,
			}
			if cmd.Flags().Changed("price") {
				if priceCents <= 0 {
					return fmt.Errorf("price must be a positive number of cents")
				}
				request.PriceCents = &priceCents
			}

			return ctx.withQueueAccess(cmd, func(access queueaccess.Access) error {
				result, err := access.Select(cmd.Context(), ids[0], request)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, map[string]any{
						"id":      ids[0],
						"outcome": string(result.Outcome),
						"item":    result.Item,
					})
				}
				printSelectResult(cmd, ids[0], request, result)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&priceCents, "price", 0, "Record a hand-edited price in cents")
	cmd.Flags().StringVar(&currency, "currency", "", "Currency for --price (defaults to the configured currency)")
	return cmd
}

func printSelectResult(cmd *cobra.Command, id int64, request api.SelectRequest, result api.SelectResult) {
	out := cmd.OutOrStdout()
	switch result.Outcome {
	case api.SelectNotFound:
		fmt.Fprintf(out, "Item %d not found\n", id)
	case api.SelectNotReviewable:
		status := ""
		if result.Item != nil {
			status = result.Item.Status
		}
		if status != "" {
			fmt.Fprintf(out, "Item %d is not awaiting review (status %s)\n", id, formatStatusLabel(status))
		} else {
			fmt.Fprintf(out, "Item %d is not awaiting review\n", id)
		}
	case api.SelectUnknownCandidate:
		fmt.Fprintf(out, "Candidate %q is not offered for item %d; run 'binder review show %d' to see the options\n",
			request.CandidateID, id, id)
	case api.SelectApplied:
		manual := strings.EqualFold(request.CandidateID, api.ManualCandidateID) || request.CandidateID == ""
		if manual {
			fmt.Fprintf(out, "Item %d routed to manual processing\n", id)
		} else if result.Item != nil {
			fmt.Fprintf(out, "Item %d confirmed as %s\n", id, queueItemTitle(*result.Item))
		} else {
			fmt.Fprintf(out, "Item %d confirmed\n", id)
		}
		if result.Item != nil && result.Item.Price != nil {
			fmt.Fprintf(out, "Price: %s\n", formatCents(result.Item.Price.Cents, result.Item.Price.Currency))
		}
	}
}
