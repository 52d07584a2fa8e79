// Package watchdog observes the fiber scheduler's deadlock heuristic and
// turns it into rate-limited diagnostics, so a genuinely stuck runtime
// produces one log line every so often instead of a line per suspicious
// tick. Rate limiting is done per block-reason category with
// github.com/joeycumines/go-catrate, the same sliding-window limiter the
// teacher's pack uses elsewhere for discrete-event throttling.
package watchdog

import (
	"fmt"
	"os"
	"time"

	catrate "github.com/joeycumines/go-catrate"

	"github.com/sreekotay/ccrt/fiber"
	"github.com/sreekotay/ccrt/rtconfig"
	"github.com/sreekotay/ccrt/rtlog"
)

// Reason names the kind of blocking operation a stuck worker was last
// observed inside, for diagnostic grouping.
type Reason string

const (
	ReasonChanSend Reason = "chan_send"
	ReasonChanRecv Reason = "chan_recv"
	ReasonTaskWait Reason = "task_wait"
	ReasonMutex    Reason = "mutex"
)

// exitCodeTimeout mirrors the conventional exit code coreutils' timeout(1)
// uses when it has to kill a hung process.
const exitCodeTimeout = 124

// Watchdog rate-limits and logs deadlock-heuristic episodes raised by a
// fiber.Scheduler, optionally aborting the process when configured to.
type Watchdog struct {
	logger  rtlog.Logger
	limiter *catrate.Limiter
	abort   bool
	timeout time.Duration

	exit func(code int)
}

// New builds a Watchdog from a resolved rtconfig.Config. logger may be nil,
// in which case rtlog.Global() is used at log time.
func New(cfg rtconfig.Config, logger rtlog.Logger) *Watchdog {
	return &Watchdog{
		logger: logger,
		limiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second:      1,
			10 * time.Second: 3,
		}),
		abort:   cfg.DeadlockAbort,
		timeout: cfg.DeadlockTimeout,
		exit:    os.Exit,
	}
}

// Attach installs w as sched's deadlock-suspected callback. It replaces any
// callback already set.
func (w *Watchdog) Attach(sched *fiber.Scheduler) {
	sched.OnDeadlockSuspected = w.onSuspected
}

// Note marks a single blocking-operation episode for reason, independent of
// the scheduler-wide heuristic, for a caller that can see a specific stall
// directly rather than inferring it from aggregate scheduler stats. No
// package in this module calls it.
func (w *Watchdog) Note(reason Reason, detail string) {
	w.emit(reason, detail, fiber.Stats{})
}

func (w *Watchdog) onSuspected(stats fiber.Stats) {
	w.emit("scheduler", fmt.Sprintf("all %d workers idle or parked, queue empty", stats.Workers), stats)
}

func (w *Watchdog) emit(category Reason, detail string, stats fiber.Stats) {
	if _, ok := w.limiter.Allow(category); !ok {
		return
	}

	logger := w.logger
	if logger == nil {
		logger = rtlog.Global()
	}
	logger.Log(rtlog.Entry{
		Level:     rtlog.LevelWarn,
		Component: "watchdog",
		Message:   fmt.Sprintf("possible deadlock: %s", detail),
		Fields: map[string]any{
			"reason":    string(category),
			"active":    stats.Active,
			"parked":    stats.Parked,
			"sleeping":  stats.Sleeping,
			"queued":    stats.Queued,
			"completed": stats.Completed,
		},
	})

	if w.abort {
		logger.Log(rtlog.Entry{
			Level:     rtlog.LevelError,
			Component: "watchdog",
			Message:   fmt.Sprintf("aborting after suspected deadlock (timeout=%s)", w.timeout),
		})
		w.exit(exitCodeTimeout)
	}
}
