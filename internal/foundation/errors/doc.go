// Package errors provides the classified error primitives used across neon.
//
// Every failure that can end a nightly run carries an ErrorCategory that maps
// onto the pipeline taxonomy (config, environment, fetch, build, publish,
// cleanup) and from there onto a process exit code via CLIErrorAdapter.
//
// Example usage:
//
//	err := errors.FetchError("clone failed").
//		WithCause(originalErr).
//		WithContext("component", "kdelibs").
//		Build()
package errors
