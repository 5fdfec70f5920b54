// Package workspace manages the dated base directory of a nightly run.
//
// The base path (<root>/<YYYYMMDD>) persists after the run so the next night's
// cleanup stage can apply retention to it. Component sources, the install
// prefix, packaged artifacts and logs all live below it.
//
// Two runs started on the same day share the base path. The run lock
// (.neon.lock, created exclusively) makes the second one fail instead of
// clobbering the first one's trees.
package workspace
