package fiber

import "time"

// waitChunk bounds how long a single Wait call blocks before a worker
// rechecks for shutdown; it has no relationship to any caller Deadline
// since run-queue waits aren't governed by one.
const waitChunk = 10 * time.Millisecond

func waitBriefly() { time.Sleep(time.Millisecond) }
