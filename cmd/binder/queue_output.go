package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid item id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printQueueRetryResult(out io.Writer, result queueRetryResult) {
	for _, item := range result.Items {
		switch item.Outcome {
		case queueRetryOutcomeNotFound:
			fmt.Fprintf(out, "Item %d not found\n", item.ID)
		case queueRetryOutcomeNotFailed:
			fmt.Fprintf(out, "Item %d is not in a retryable state (only failed items can be retried)\n", item.ID)
		case queueRetryOutcomeUpdated:
			fmt.Fprintf(out, "Item %d reset for retry\n", item.ID)
		}
	}
}

func printQueueStopResult(out io.Writer, result queueStopResult) {
	for _, item := range result.Items {
		switch item.Outcome {
		case queueStopOutcomeNotFound:
			fmt.Fprintf(out, "Item %d not found\n", item.ID)
		case queueStopOutcomeAlreadyCompleted:
			fmt.Fprintf(out, "Item %d is already completed\n", item.ID)
		case queueStopOutcomeAlreadyFailed:
			fmt.Fprintf(out, "Item %d is already stopped\n", item.ID)
		case queueStopOutcomeUpdated:
			fmt.Fprintf(out, "Item %d stopped\n", item.ID)
		}
	}
}

func printQueueRemoveResult(out io.Writer, result queueRemoveResult) {
	for _, item := range result.Items {
		switch item.Outcome {
		case queueRemoveOutcomeNotFound:
			fmt.Fprintf(out, "Item %d not found\n", item.ID)
		case queueRemoveOutcomeRemoved:
			fmt.Fprintf(out, "Item %d removed\n", item.ID)
		}
	}
}

func bulkClearLabel(completed, failed bool) string {
	switch {
	case completed:
		return "completed items"
	case failed:
		return "failed items"
	default:
		return "queue items"
	}
}
