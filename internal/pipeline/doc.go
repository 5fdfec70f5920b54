// Package pipeline sequences one nightly run.
//
// A Runner loads the configuration, derives the build context once, asks a
// Planner for the ordered fetch units, build driver, publish targets and
// cleaner, and drives them strictly in order:
//
//	INIT -> CONFIG_LOADED -> CONTEXT_READY -> FETCHING -> BUILT -> PUBLISHING -> CLEANING -> DONE
//
// Any stage may move the run to FAILED, which is terminal. Fetch and publish
// failures are governed by the fail_fast/continue policies of the
// configuration; every unit outcome is recorded in the Report and forwarded
// to Observers.
package pipeline
