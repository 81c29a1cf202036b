package testsupport

import (
	"path/filepath"
	"testing"

	"binder/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Vision.APIKey = "test"
	cfgVal.Catalog.APIKey = "test"
	cfgVal.Catalog.BaseURL = "https://catalog.test.invalid/v1"
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.IntakeDir = filepath.Join(base, "intake")
	cfgVal.Paths.ArchiveDir = filepath.Join(base, "archive")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithVisionKey sets the vision API key on the test config.
func WithVisionKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Vision.APIKey = key
	}
}

// WithCatalogKey sets the catalog API key on the test config.
func WithCatalogKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.APIKey = key
	}
}

// WithPublishingEnabled turns on the listing hand-off after review.
func WithPublishingEnabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Publishing.Enabled = true
	}
}

// WithTaxonomySource points attribute resolution at a vocabulary file.
func WithTaxonomySource(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Taxonomy.SourcePath = path
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
