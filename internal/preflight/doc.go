// Package preflight provides readiness checks for the library server and
// filesystem paths that courier depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll once at startup and logs failures, so a
//     misconfigured host shows up in the run log instead of as silent
//     upload stalls.
//   - The CLI "courier status" command uses individual check functions
//     (CheckLibraryFromConfig, CheckDirectoryAccess) to display host
//     readiness alongside daemon state.
package preflight
