package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"binder/internal/config"
)

// CheckVisionFromConfig evaluates recognition service status from config
// and connectivity.
func CheckVisionFromConfig(cfg *config.Config) Result {
	const name = "Vision API"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Vision.APIKey) == "" {
		return Result{Name: name, Detail: "Missing API key"}
	}
	return CheckVision(context.Background(), cfg)
}

// CheckCatalogFromConfig evaluates catalog status from config and
// connectivity.
func CheckCatalogFromConfig(cfg *config.Config) Result {
	const name = "Catalog API"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Catalog.APIKey) == "" {
		return Result{Name: name, Detail: "Missing API key"}
	}
	return CheckCatalog(context.Background(), cfg)
}

// CheckPublishingFromConfig reports whether listing publication is
// enabled and minimally configured.
func CheckPublishingFromConfig(cfg *config.Config) Result {
	const name = "Publishing"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.Publishing.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if strings.TrimSpace(cfg.Publishing.WarehouseCode) == "" {
		return Result{Name: name, Detail: "Missing warehouse code"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("Enabled (%s, %s)", cfg.Publishing.WarehouseCode, cfg.Publishing.Currency)}
}

// IntakeProbe reports the current snapshot of the intake directory.
type IntakeProbe struct {
	Accessible bool
	Dir        string
	Waiting    int
}

// ProbeIntake counts supported scan images waiting in the intake
// directory.
func ProbeIntake(dir string) IntakeProbe {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return IntakeProbe{}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return IntakeProbe{Dir: dir}
	}
	probe := IntakeProbe{Accessible: true, Dir: dir}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png", ".webp":
			probe.Waiting++
		}
	}
	return probe
}

// IntakeDetail renders a display-friendly summary for status UIs.
func (p IntakeProbe) IntakeDetail() string {
	if !p.Accessible {
		if p.Dir == "" {
			return "Intake directory not configured"
		}
		return fmt.Sprintf("Intake directory %s not accessible", p.Dir)
	}
	switch p.Waiting {
	case 0:
		return "No scans waiting"
	case 1:
		return fmt.Sprintf("1 scan waiting in %s", p.Dir)
	default:
		return fmt.Sprintf("%d scans waiting in %s", p.Waiting, p.Dir)
	}
}
