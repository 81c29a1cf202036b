// Package daemon coordinates the long-running binder process and its
// integration points.
//
// It wires configuration, queue storage, the workflow manager, the intake
// directory monitor, the shared taxonomy loader, and the HTTP API into a
// single lifecycle with flock-based locking to prevent multiple instances.
// Intake monitor failures are logged but do not abort startup because scans
// can still arrive through the API.
//
// Keep orchestration logic here: individual workflow stages should live in
// their respective packages while the daemon focuses on startup, shutdown,
// and high level coordination.
package daemon
