package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeVision(); err != nil {
		return err
	}
	if err := c.normalizeCatalog(); err != nil {
		return err
	}
	if err := c.normalizeTaxonomy(); err != nil {
		return err
	}
	c.normalizePublishing()
	c.normalizeNotifications()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.IntakeDir) == "" {
		c.Paths.IntakeDir = defaultIntakeDir
	}
	if c.Paths.IntakeDir, err = expandPath(c.Paths.IntakeDir); err != nil {
		return fmt.Errorf("paths.intake_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
		c.Paths.ArchiveDir = defaultArchiveDir
	}
	if c.Paths.ArchiveDir, err = expandPath(c.Paths.ArchiveDir); err != nil {
		return fmt.Errorf("paths.archive_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeVision() error {
	c.Vision.APIKey = strings.TrimSpace(c.Vision.APIKey)
	// Environment credentials win over file values.
	if value := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); value != "" {
		c.Vision.APIKey = value
	} else if value := strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")); value != "" {
		c.Vision.APIKey = value
	}
	c.Vision.Model = strings.TrimSpace(c.Vision.Model)
	if c.Vision.Model == "" {
		c.Vision.Model = defaultVisionModel
	}
	if c.Vision.TimeoutSeconds <= 0 {
		c.Vision.TimeoutSeconds = defaultVisionTimeoutSeconds
	}
	if c.Vision.RetryAttempts < 0 {
		c.Vision.RetryAttempts = defaultVisionRetryAttempts
	}
	if c.Vision.MaxImageBytes <= 0 {
		c.Vision.MaxImageBytes = defaultVisionMaxImageBytes
	}
	return nil
}

func (c *Config) normalizeCatalog() error {
	c.Catalog.APIKey = strings.TrimSpace(c.Catalog.APIKey)
	if value := strings.TrimSpace(os.Getenv("CARD_CATALOG_API_KEY")); value != "" {
		c.Catalog.APIKey = value
	}
	c.Catalog.BaseURL = strings.TrimSpace(c.Catalog.BaseURL)
	if value := strings.TrimSpace(os.Getenv("CARD_CATALOG_URL")); value != "" {
		c.Catalog.BaseURL = value
	}
	c.Catalog.BaseURL = strings.TrimRight(c.Catalog.BaseURL, "/")
	c.Catalog.Language = strings.ToLower(strings.TrimSpace(c.Catalog.Language))
	if c.Catalog.Language == "" {
		c.Catalog.Language = defaultCatalogLanguage
	}
	if c.Catalog.PageSize <= 0 {
		c.Catalog.PageSize = defaultCatalogPageSize
	}
	if c.Catalog.MaxCandidates <= 0 {
		c.Catalog.MaxCandidates = defaultCatalogMaxCandidates
	}
	if c.Catalog.TimeoutSeconds <= 0 {
		c.Catalog.TimeoutSeconds = defaultCatalogTimeoutSeconds
	}
	if c.Catalog.RetryAttempts < 0 {
		c.Catalog.RetryAttempts = defaultCatalogRetryAttempts
	}
	if c.Catalog.RatePerSecond <= 0 {
		c.Catalog.RatePerSecond = defaultCatalogRatePerSecond
	}
	if c.Catalog.RateBurst <= 0 {
		c.Catalog.RateBurst = defaultCatalogRateBurst
	}
	return nil
}

func (c *Config) normalizeTaxonomy() error {
	var err error
	c.Taxonomy.SourcePath = strings.TrimSpace(c.Taxonomy.SourcePath)
	isRemote := strings.HasPrefix(c.Taxonomy.SourcePath, "http://") ||
		strings.HasPrefix(c.Taxonomy.SourcePath, "https://")
	if c.Taxonomy.SourcePath != "" && !isRemote {
		if c.Taxonomy.SourcePath, err = expandPath(c.Taxonomy.SourcePath); err != nil {
			return fmt.Errorf("taxonomy.source_path: %w", err)
		}
	}
	if c.Taxonomy.RefreshMinutes <= 0 {
		c.Taxonomy.RefreshMinutes = defaultTaxonomyRefreshMinutes
	}
	c.Taxonomy.DefaultCondition = strings.TrimSpace(c.Taxonomy.DefaultCondition)
	if c.Taxonomy.DefaultCondition == "" {
		c.Taxonomy.DefaultCondition = defaultTaxonomyCondition
	}
	c.Taxonomy.DefaultLanguage = strings.TrimSpace(c.Taxonomy.DefaultLanguage)
	if c.Taxonomy.DefaultLanguage == "" {
		c.Taxonomy.DefaultLanguage = defaultTaxonomyLanguage
	}
	return nil
}

func (c *Config) normalizePublishing() {
	c.Publishing.Currency = strings.ToUpper(strings.TrimSpace(c.Publishing.Currency))
	if c.Publishing.Currency == "" {
		c.Publishing.Currency = defaultPublishingCurrency
	}
	if c.Publishing.PriceFloorCents < 0 {
		c.Publishing.PriceFloorCents = defaultPublishingPriceFloor
	}
	c.Publishing.WarehouseCode = strings.ToUpper(strings.TrimSpace(c.Publishing.WarehouseCode))
	if c.Publishing.WarehouseCode == "" {
		c.Publishing.WarehouseCode = defaultPublishingWarehouseCode
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = 10
	}
	if c.Notifications.QueueMinItems <= 0 {
		c.Notifications.QueueMinItems = defaultNotifyQueueMinItems
	}
	if c.Notifications.DedupWindowSeconds < 0 {
		c.Notifications.DedupWindowSeconds = defaultNotifyDedupWindowSeconds
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = 5
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = 10
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultWorkflowHeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		c.Workflow.HeartbeatTimeout = defaultWorkflowHeartbeatTimeout
	}
	if c.Workflow.IdentificationWorkers <= 0 {
		c.Workflow.IdentificationWorkers = defaultIdentificationWorkers
	}
	if c.Workflow.IntakePollInterval <= 0 {
		c.Workflow.IntakePollInterval = 5
	}
	if c.Workflow.IntakeSettleSeconds < 0 {
		c.Workflow.IntakeSettleSeconds = 2
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
