// Package cards defines the card-scan domain model: the strictly decoded
// recognition output, the per-scan working state persisted on queue
// items, and the selection rules that rebuild identity and attributes
// when a reviewer confirms a candidate.
package cards
