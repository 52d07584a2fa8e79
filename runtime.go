// Package ccrt wires the runtime's packages into one process-wide entry
// point: a fiber scheduler, an async I/O backend, structured logging, and
// the deadlock watchdog, all configured from a single rtconfig.Config. It
// does not create an executor pool. It is the equivalent of the teacher's top-level
// Loop constructor, generalized from one event loop per goroutine to one
// runtime per process.
package ccrt

import (
	"time"

	"github.com/sreekotay/ccrt/asyncio"
	"github.com/sreekotay/ccrt/deadline"
	"github.com/sreekotay/ccrt/fiber"
	"github.com/sreekotay/ccrt/internal/watchdog"
	"github.com/sreekotay/ccrt/nursery"
	"github.com/sreekotay/ccrt/rtconfig"
	"github.com/sreekotay/ccrt/rtlog"
)

// Runtime is a fully wired instance of the concurrency core: a fiber
// scheduler, its deadlock watchdog, and the shared async I/O backend.
type Runtime struct {
	cfg      rtconfig.Config
	sched    *fiber.Scheduler
	backend  asyncio.Backend
	watchdog *watchdog.Watchdog
	log      rtlog.Logger
}

// New resolves configuration (defaults, then environment, then opts),
// starts the fiber scheduler, selects the async I/O backend, and -- if
// cfg.DeadlockDetect is set -- attaches the watchdog to the scheduler.
func New(logger rtlog.Logger, opts ...rtconfig.Option) (*Runtime, error) {
	cfg := rtconfig.Resolve(opts...)
	if logger == nil {
		logger = rtlog.Global()
	}

	sched := fiber.New(cfg.Workers, cfg.SpawnQueueCap)

	var backend asyncio.Backend
	var err error
	if cfg.RuntimeBackend == rtconfig.BackendPoll {
		backend, err = asyncio.NewDefaultBackend()
	} else {
		backend, err = asyncio.DefaultBackend()
	}
	if err != nil {
		sched.Shutdown()
		return nil, err
	}

	rt := &Runtime{cfg: cfg, sched: sched, backend: backend, log: logger}

	if cfg.DeadlockDetect {
		rt.watchdog = watchdog.New(cfg, logger)
		rt.watchdog.Attach(sched)
	}

	return rt, nil
}

// Config returns the resolved configuration the Runtime was built from.
func (rt *Runtime) Config() rtconfig.Config { return rt.cfg }

// Scheduler returns the runtime's fiber scheduler.
func (rt *Runtime) Scheduler() *fiber.Scheduler { return rt.sched }

// Backend returns the runtime's shared async I/O backend.
func (rt *Runtime) Backend() asyncio.Backend { return rt.backend }

// Logger returns the runtime's configured Logger.
func (rt *Runtime) Logger() rtlog.Logger { return rt.log }

// Nursery creates a root Nursery scoped to this runtime's scheduler, with
// an optional absolute deadline (deadline.None() for none).
func (rt *Runtime) Nursery(dl deadline.Deadline) *nursery.Nursery {
	return nursery.New(rt.sched, dl)
}

// Stats returns a snapshot of the fiber scheduler's live counters.
func (rt *Runtime) Stats() fiber.Stats { return rt.sched.Stats() }

// Shutdown stops accepting new work, drains the scheduler, and closes the
// async I/O backend. It does not wait for nurseries created from this
// Runtime to be freed -- callers are expected to Free every Nursery they
// created before calling Shutdown.
func (rt *Runtime) Shutdown() error {
	rt.sched.Shutdown()
	return rt.backend.Close()
}

// DeadlineFromTimeout is a small convenience wrapper so callers needn't
// import the deadline package just to bound a top-level call.
func DeadlineFromTimeout(d time.Duration) deadline.Deadline {
	return deadline.After(d)
}
