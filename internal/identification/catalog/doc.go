// Package catalog provides the HTTP client for the external card catalog
// search provider. Search calls are rate limited, carry a short per-attempt
// timeout, and retry transient transport failures within a small budget.
package catalog
