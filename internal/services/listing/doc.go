// Package listing defines the outbound contract between the scan
// pipeline and the marketplace.
//
// The Outbound record is the only artifact this system commits
// downstream: canonical identity, resolved attribute map, price,
// storage location, and source image references. The Publisher
// interface creates the listing; NoopPublisher stands in when no
// marketplace integration is configured, logging the record and
// fabricating a local reference so the workflow completes normally.
package listing
