// Package publish implements the distribution channels a finished build is
// handed to.
//
// Every kind satisfies pipeline.PublishTarget; New is the only place that
// branches on the configured kind.
package publish
