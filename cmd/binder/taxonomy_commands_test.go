package main

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTaxonomyShowBuiltin(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"taxonomy", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("taxonomy show failed: %v", err)
	}
	requireContains(t, stdout, "Source: builtin")
	requireContains(t, stdout, "Rarity (rarity):")
	requireContains(t, stdout, "Reverse Holo")
	requireContains(t, stdout, "Condition (condition):")
}

func TestTaxonomyShowGroupFilter(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"taxonomy", "show", "finish"}, env.configPath)
	if err != nil {
		t.Fatalf("taxonomy show failed: %v", err)
	}
	requireContains(t, stdout, "Finish (finish):")
	if strings.Contains(stdout, "Rarity (rarity):") {
		t.Fatalf("expected only the finish group, got %q", stdout)
	}
}

func TestTaxonomyShowUnknownGroup(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"taxonomy", "show", "bogus"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), `taxonomy group "bogus" not found`) {
		t.Fatalf("expected unknown group error, got %v", err)
	}
}

func TestTaxonomyRefreshBuiltin(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"taxonomy", "refresh"}, env.configPath)
	if err != nil {
		t.Fatalf("taxonomy refresh failed: %v", err)
	}
	requireContains(t, stdout, "Taxonomy refreshed from builtin (6 groups)")
}

func TestTaxonomyShowJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"--json", "taxonomy", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("taxonomy show failed: %v", err)
	}
	var payload struct {
		Source string `json:"source"`
		Groups []struct {
			ID string `json:"id"`
		} `json:"groups"`
	}
	if err := json.Unmarshal([]byte(stdout), &payload); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if payload.Source != "builtin" {
		t.Fatalf("expected builtin source, got %q", payload.Source)
	}
	if len(payload.Groups) != 6 {
		t.Fatalf("expected 6 groups, got %d", len(payload.Groups))
	}
}
