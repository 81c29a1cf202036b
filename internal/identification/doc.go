// Package identification matches scanned card images to catalog entries and
// enriches queue items before review.
//
// The Identifier orchestrates vision field extraction, fingerprint duplicate
// detection, staged catalog searches with number and set hints, and attribute
// resolution against the taxonomy snapshot. Every scan it finishes lands in
// review with a ranked candidate list; confirmation is always a human action,
// and notifications flag the scans that need one.
//
// Centralize new identification heuristics here, keeping IO and queue updates
// in one place to avoid skew across stages.
package identification
