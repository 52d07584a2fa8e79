package channel

import (
	"time"

	"github.com/sreekotay/ccrt/deadline"
)

// waitChunkCap bounds any single Wait call so a Deadline carrying only a
// cancellation flag (no absolute time) is still rechecked promptly, and so
// an absolute-time Deadline doesn't oversleep past its expiry by more than
// this much.
const waitChunkCap = 10 * time.Millisecond

// waitChunk returns the timeout to pass to wake.Word.Wait for one iteration
// of a blocking loop bounded by dl: the lesser of dl's remaining time and
// waitChunkCap, so cancellation (which carries no wakeup of its own) is
// noticed within one chunk even if nothing else ever wakes the waiter.
func waitChunk(dl deadline.Deadline) time.Duration {
	remaining := dl.Remaining()
	if remaining > waitChunkCap || remaining <= 0 {
		return waitChunkCap
	}
	return remaining
}
