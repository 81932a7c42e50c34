// Package preflight provides readiness checks for external services and
// filesystem paths the enrichment daemon depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll once at startup and logs failures without
//     refusing to start; the pipeline degrades per source at runtime.
//   - The CLI "vjcap status" command renders individual results so an
//     operator can see which provider or path is unhealthy.
package preflight
