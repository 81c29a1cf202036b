// Package api defines wire-format types, converters, and shared action
// services for the HTTP API and CLI. It translates internal queue models
// into transport-friendly DTOs so both surfaces render the same view
// without coupling to internal types.
//
// # Key Types
//
// QueueItem: transport representation of a queue entry with progress,
// detected card fields, catalog candidates, resolved attributes, and the
// confirmed selection, price, and listing.
//
// WorkflowStatus: daemon running state, queue stats, stage health, and last item.
//
// DaemonStatus: aggregated runtime information including dependencies.
//
// LogEvent/LogStreamResponse: structured log payloads for live tailing.
//
// ScanService: store-backed actions shared by the HTTP handlers and CLI,
// covering scan submission, candidate selection, and manual pricing.
//
// # Converters
//
// FromQueueItem: queue.Item -> QueueItem with card payloads decoded from
// their JSON columns.
//
// FromStatusSummary: workflow.StatusSummary -> WorkflowStatus.
//
// StageHealthSlice: deterministic ordering of stage health map.
//
// FromSnapshot: taxonomy.Snapshot -> TaxonomyResponse.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers.
// Internal enums (queue.Status, queue.ProcessingLane) are exposed as
// lowercase strings. Timestamps use RFC3339 with milliseconds. Optional
// card fields stay pointers so a null survives the round trip; a reader
// must be able to tell "model saw nothing" from "empty string".
//
// Selection routes through cards.ApplySelection so the HTTP handler and
// CLI cannot drift: identity and attributes are rebuilt from the chosen
// candidate, and only a hand-entered price survives reselection.
package api
