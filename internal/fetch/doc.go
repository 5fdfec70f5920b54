// Package fetch materializes upstream components under the run's base path.
//
// GitUnit clones one configured component with go-git into
// <base>/<component>, replacing whatever a previous same-day run left there.
// Transient transport failures are retried with the configured backoff.
package fetch
