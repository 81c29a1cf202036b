// Package intake watches the intake directory and turns dropped card
// images into queued scans.
//
// The monitor polls on an interval, waits for each file's size to settle
// so partial uploads never enter the pipeline, fingerprints the image,
// skips files whose fingerprint is already in the workflow, and moves the
// rest into staging. Every image staged by one sweep shares a batch id so
// cards scanned together stay binned together at publication.
package intake
