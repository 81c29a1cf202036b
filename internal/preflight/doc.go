// Package preflight provides readiness checks for external services
// and filesystem paths that Binder depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and the workflow manager runs
//     RunFeatureChecks before launching processing lanes, so doomed
//     runs fail fast with a clear report.
//   - The CLI "binder status" command uses individual check functions
//     (CheckVision, CheckDirectoryAccess) to display service health.
//
// Each check is gated by its config toggle -- unconfigured features are
// reported without contacting anything.
package preflight
