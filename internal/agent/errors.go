package agent

import "errors"

// The three conditions surfaced to the caller as a per-email failure. Plan
// parse failures, per-tier element misses, and inconclusive verification are
// all recovered internally and never escape the pipeline.
var (
	ErrLinkNotFound    = errors.New("no unsubscribe link found")
	ErrPageUnreachable = errors.New("unsubscribe page unreachable")
	ErrSnapshotFailed  = errors.New("failed to read page state")
)
