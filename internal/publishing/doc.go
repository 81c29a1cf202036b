// Package publishing finalizes confirmed scans by pricing them, allocating
// storage locations, and committing listings downstream.
//
// It resolves the listing price (manual values win, then the estimator, then
// the configured floor), derives a storage location from the warehouse
// allocator, publishes the outbound record, and archives the scan image.
// Progress updates and error wrapping follow the same conventions as the
// identification stage so the workflow manager can react uniformly.
//
// Extend publication behaviour here whenever the listing hand-off changes.
package publishing
