package task

import (
	"time"

	"github.com/sreekotay/ccrt/deadline"
)

const (
	waitChunkCap   = 10 * time.Millisecond
	minPollBackoff = 50 * time.Microsecond
	maxPollBackoff = 5 * time.Millisecond
)

func waitChunk(dl deadline.Deadline) time.Duration {
	remaining := dl.Remaining()
	if remaining > waitChunkCap || remaining <= 0 {
		return waitChunkCap
	}
	return remaining
}

func timeoutErr(dl deadline.Deadline) error {
	if dl.Cancelled() {
		return &TimeoutError{Cancelled: true, Cause: ErrCancelled}
	}
	return &TimeoutError{}
}

// sleep is a var so tests can shrink backoff timing if ever needed.
var sleep = time.Sleep
