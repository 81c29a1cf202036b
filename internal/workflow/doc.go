// Package workflow advances queued scans through the configured processing
// stages.
//
// The Manager claims work from the queue, reclaims stale items via
// heartbeats, and feeds scans into registered stage handlers (identifier,
// publisher) while capturing progress and failure metadata. It also
// aggregates queue stats, calls stage health checks, and emits queue-level
// notifications when processing starts or completes.
//
// The workflow runs two independent lanes: identification (pending scans
// claimed by a small worker pool so several card images can be recognized
// concurrently) and publishing (confirmed scans pushed to the marketplace one
// at a time). Identification always parks its result in review; nothing
// reaches the publishing lane until an operator confirms the match.
//
// Add new lifecycle stages by extending StageSet, updating the queue status
// enums, and teaching the manager how to transition items; this package is the
// authoritative home for that coordination logic.
package workflow
