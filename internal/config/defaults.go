package config

const (
	defaultStagingDir                = "~/.local/share/binder/staging"
	defaultIntakeDir                 = "~/binder/intake"
	defaultArchiveDir                = "~/binder/archive"
	defaultLogDir                    = "~/.local/share/binder/logs"
	defaultLogRetentionDays          = 60
	defaultAPIBind                   = "127.0.0.1:7787"
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultVisionModel               = "gemini-2.5-flash"
	defaultVisionTimeoutSeconds      = 45
	defaultVisionRetryAttempts       = 2
	defaultVisionMaxImageBytes       = 16 << 20
	defaultCatalogLanguage           = "en"
	defaultCatalogPageSize           = 20
	defaultCatalogMaxCandidates      = 12
	defaultCatalogTimeoutSeconds     = 5
	defaultCatalogRetryAttempts      = 2
	defaultCatalogRatePerSecond      = 5.0
	defaultCatalogRateBurst          = 5
	defaultTaxonomyRefreshMinutes    = 60
	defaultTaxonomyCondition         = "Near Mint"
	defaultTaxonomyLanguage          = "English"
	defaultPublishingCurrency        = "USD"
	defaultPublishingPriceFloor      = 25
	defaultPublishingWarehouseCode   = "MAIN"
	defaultNotifyQueueMinItems       = 2
	defaultNotifyDedupWindowSeconds  = 600
	defaultWorkflowHeartbeatInterval = 15
	defaultWorkflowHeartbeatTimeout  = 120
	defaultIdentificationWorkers     = 2
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			IntakeDir:  defaultIntakeDir,
			ArchiveDir: defaultArchiveDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Vision: Vision{
			Model:          defaultVisionModel,
			TimeoutSeconds: defaultVisionTimeoutSeconds,
			RetryAttempts:  defaultVisionRetryAttempts,
			MaxImageBytes:  defaultVisionMaxImageBytes,
		},
		Catalog: Catalog{
			Language:       defaultCatalogLanguage,
			PageSize:       defaultCatalogPageSize,
			MaxCandidates:  defaultCatalogMaxCandidates,
			TimeoutSeconds: defaultCatalogTimeoutSeconds,
			RetryAttempts:  defaultCatalogRetryAttempts,
			RatePerSecond:  defaultCatalogRatePerSecond,
			RateBurst:      defaultCatalogRateBurst,
		},
		Taxonomy: Taxonomy{
			RefreshMinutes:   defaultTaxonomyRefreshMinutes,
			DefaultCondition: defaultTaxonomyCondition,
			DefaultLanguage:  defaultTaxonomyLanguage,
		},
		Publishing: Publishing{
			Currency:        defaultPublishingCurrency,
			PriceFloorCents: defaultPublishingPriceFloor,
			WarehouseCode:   defaultPublishingWarehouseCode,
		},
		Notifications: Notifications{
			RequestTimeout:     10,
			Identification:     true,
			Review:             true,
			Publish:            true,
			Queue:              true,
			Errors:             true,
			QueueMinItems:      defaultNotifyQueueMinItems,
			DedupWindowSeconds: defaultNotifyDedupWindowSeconds,
		},
		Workflow: Workflow{
			QueuePollInterval:     5,
			ErrorRetryInterval:    10,
			HeartbeatInterval:     defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:      defaultWorkflowHeartbeatTimeout,
			IdentificationWorkers: defaultIdentificationWorkers,
			IntakePollInterval:    5,
			IntakeSettleSeconds:   2,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
