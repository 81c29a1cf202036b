package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateVision(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateTaxonomy(); err != nil {
		return err
	}
	if err := c.validatePublishing(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateVision() error {
	if c.Vision.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/binder/config.toml"
		}
		return fmt.Errorf("vision.api_key is required. Set GEMINI_API_KEY env var or edit %s (create with 'binder config init')", defaultPath)
	}
	if c.Vision.Model == "" {
		return errors.New("vision.model must be set")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if c.Catalog.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/binder/config.toml"
		}
		return fmt.Errorf("catalog.base_url is required. Set CARD_CATALOG_URL env var or edit %s (create with 'binder config init')", defaultPath)
	}
	if !strings.HasPrefix(c.Catalog.BaseURL, "http://") && !strings.HasPrefix(c.Catalog.BaseURL, "https://") {
		return fmt.Errorf("catalog.base_url must start with http:// or https:// (got %q)", c.Catalog.BaseURL)
	}
	if err := ensurePositiveMap(map[string]int{
		"catalog.page_size":       c.Catalog.PageSize,
		"catalog.max_candidates":  c.Catalog.MaxCandidates,
		"catalog.timeout_seconds": c.Catalog.TimeoutSeconds,
		"catalog.rate_burst":      c.Catalog.RateBurst,
	}); err != nil {
		return err
	}
	if c.Catalog.RetryAttempts < 0 {
		return errors.New("catalog.retry_attempts must be >= 0")
	}
	if c.Catalog.RatePerSecond <= 0 {
		return errors.New("catalog.rate_per_second must be positive")
	}
	return nil
}

func (c *Config) validateTaxonomy() error {
	if c.Taxonomy.DefaultCondition == "" {
		return errors.New("taxonomy.default_condition must be set")
	}
	if c.Taxonomy.DefaultLanguage == "" {
		return errors.New("taxonomy.default_language must be set")
	}
	return nil
}

func (c *Config) validatePublishing() error {
	if !c.Publishing.Enabled {
		return nil
	}
	if len(c.Publishing.Currency) != 3 {
		return fmt.Errorf("publishing.currency must be a three letter code (got %q)", c.Publishing.Currency)
	}
	if c.Publishing.PriceFloorCents < 0 {
		return errors.New("publishing.price_floor_cents must be >= 0")
	}
	if strings.TrimSpace(c.Publishing.WarehouseCode) == "" {
		return errors.New("publishing.warehouse_code must be set when publishing.enabled is true")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"vision.timeout_seconds":          c.Vision.TimeoutSeconds,
		"notifications.request_timeout":   c.Notifications.RequestTimeout,
		"workflow.queue_poll_interval":    c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval":   c.Workflow.ErrorRetryInterval,
		"workflow.identification_workers": c.Workflow.IdentificationWorkers,
		"workflow.intake_poll_interval":   c.Workflow.IntakePollInterval,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	if c.Workflow.IntakeSettleSeconds < 0 {
		return errors.New("workflow.intake_settle_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.QueueMinItems < 1 {
		return errors.New("notifications.queue_min_items must be >= 1")
	}
	if c.Notifications.DedupWindowSeconds < 0 {
		return errors.New("notifications.dedup_window_seconds must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
