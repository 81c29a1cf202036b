package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"binder/internal/cards"
	"binder/internal/queue"
	"binder/internal/testsupport"
)

func TestReviewListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"review", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("review list: %v", err)
	}
	requireContains(t, out, "No scans awaiting review")
}

func TestReviewList(t *testing.T) {
	env := setupCLITestEnv(t)

	item := seedReviewItem(t, env.store, "Snorlax")
	testsupport.NewScan(t, env.store, "/scans/pending.jpg", "fp-pending")

	out, _, err := runCLI(t, []string{"review", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("review list: %v", err)
	}
	requireContains(t, out, fmt.Sprintf("%d", item.ID))
	requireContains(t, out, "Snorlax")
	requireContains(t, out, "Multiple candidates matched")
	requireContains(t, out, "binder review show")
	if strings.Contains(out, "pending.jpg") {
		t.Fatalf("expected pending scan to stay off the review list, got:\n%s", out)
	}
}

func TestReviewShow(t *testing.T) {
	env := setupCLITestEnv(t)

	item := seedReviewItem(t, env.store, "Snorlax")

	out, _, err := runCLI(t, []string{"review", "show", fmt.Sprintf("%d", item.ID)}, env.configPath)
	if err != nil {
		t.Fatalf("review show: %v", err)
	}
	requireContains(t, out, fmt.Sprintf("Item #%d: Snorlax (Review)", item.ID))
	requireContains(t, out, "Review reason: Multiple candidates matched")
	requireContains(t, out, "Detected fields:")
	requireContains(t, out, "Name: Snorlax")
	requireContains(t, out, "Number: 54")
	requireContains(t, out, "xy7-54")
	requireContains(t, out, "54/98")
	requireContains(t, out, "12.50 USD")
	requireContains(t, out, "Search attempts:")
	requireContains(t, out, `exact "Snorlax 54": 2 results in 120ms`)
	requireContains(t, out, fmt.Sprintf("binder select %d <candidate>", item.ID))
}

func TestReviewShowNotFound(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"review", "show", "42"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "item 42 not found") {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestReviewShowJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	item := seedReviewItem(t, env.store, "Snorlax")

	out, _, err := runCLI(t, []string{"review", "show", fmt.Sprintf("%d", item.ID), "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("review show --json: %v", err)
	}

	var payload struct {
		Item struct {
			ID         int64            `json:"id"`
			Status     string           `json:"status"`
			Candidates []map[string]any `json:"candidates"`
		} `json:"item"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("invalid JSON: %v\noutput: %s", err, out)
	}
	if payload.Item.ID != item.ID {
		t.Fatalf("expected id %d, got %d", item.ID, payload.Item.ID)
	}
	if payload.Item.Status != string(queue.StatusReview) {
		t.Fatalf("expected review status, got %q", payload.Item.Status)
	}
	if len(payload.Item.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(payload.Item.Candidates))
	}
}

func TestSelectConfirmsCandidate(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	item := seedReviewItem(t, env.store, "Snorlax")

	out, _, err := runCLI(t, []string{"select", fmt.Sprintf("%d", item.ID), "xy7-54"}, env.configPath)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	requireContains(t, out, fmt.Sprintf("Item %d confirmed as Snorlax", item.ID))
	requireContains(t, out, "Price: 12.50 USD")

	updated, err := env.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("lookup item: %v", err)
	}
	if updated.Status != queue.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", updated.Status)
	}
	if updated.NeedsReview {
		t.Fatal("expected needs_review cleared")
	}
	selected := cards.SelectedFromJSON(updated.SelectedJSON)
	if selected == nil || selected.ID != "xy7-54" {
		t.Fatalf("expected candidate xy7-54 stored, got %+v", selected)
	}
	if len(cards.AttributesFromJSON(updated.AttributesJSON)) == 0 {
		t.Fatal("expected resolved attributes after selection")
	}
}

func TestSelectManualPath(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	item := seedReviewItem(t, env.store, "Snorlax")

	out, _, err := runCLI(t, []string{"select", fmt.Sprintf("%d", item.ID), "none"}, env.configPath)
	if err != nil {
		t.Fatalf("select none: %v", err)
	}
	requireContains(t, out, fmt.Sprintf("Item %d routed to manual processing", item.ID))

	updated, err := env.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("lookup item: %v", err)
	}
	if updated.Status != queue.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", updated.Status)
	}
	if cards.SelectedFromJSON(updated.SelectedJSON) != nil {
		t.Fatal("expected no stored candidate on the manual path")
	}
}

func TestSelectWithPrice(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	item := seedReviewItem(t, env.store, "Snorlax")

	out, _, err := runCLI(t, []string{"select", fmt.Sprintf("%d", item.ID), "xy7-55", "--price", "9999"}, env.configPath)
	if err != nil {
		t.Fatalf("select with price: %v", err)
	}
	requireContains(t, out, "Price: 99.99 USD")

	updated, err := env.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("lookup item: %v", err)
	}
	price := cards.PriceFromJSON(updated.PriceJSON)
	if price == nil || price.Cents != 9999 || !price.Manual {
		t.Fatalf("expected manual price of 9999 cents, got %+v", price)
	}
}

func TestSelectRejectsNonPositivePrice(t *testing.T) {
	env := setupCLITestEnv(t)

	item := seedReviewItem(t, env.store, "Snorlax")

	_, _, err := runCLI(t, []string{"select", fmt.Sprintf("%d", item.ID), "xy7-54", "--price", "0"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "price must be a positive number of cents") {
		t.Fatalf("expected price validation error, got %v", err)
	}
}

func TestSelectUnknownCandidate(t *testing.T) {
	env := setupCLITestEnv(t)

	item := seedReviewItem(t, env.store, "Snorlax")

	out, _, err := runCLI(t, []string{"select", fmt.Sprintf("%d", item.ID), "bogus"}, env.configPath)
	if err != nil {
		t.Fatalf("select unknown: %v", err)
	}
	requireContains(t, out, fmt.Sprintf(`Candidate "bogus" is not offered for item %d`, item.ID))
}

func TestSelectNotReviewable(t *testing.T) {
	env := setupCLITestEnv(t)

	item := testsupport.NewScan(t, env.store, "/scans/pending.jpg", "fp-pending")

	out, _, err := runCLI(t, []string{"select", fmt.Sprintf("%d", item.ID), "xy7-54"}, env.configPath)
	if err != nil {
		t.Fatalf("select pending: %v", err)
	}
	requireContains(t, out, fmt.Sprintf("Item %d is not awaiting review", item.ID))
}

func TestSelectNotFound(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"select", "77", "none"}, env.configPath)
	if err != nil {
		t.Fatalf("select missing: %v", err)
	}
	requireContains(t, out, "Item 77 not found")
}
