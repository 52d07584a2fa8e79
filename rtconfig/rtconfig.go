// Package rtconfig resolves the runtime's process-wide configuration from
// environment variables, the way a C runtime bounded to process-level
// tuning knobs would: there is no per-call configuration surface, only one
// value per process read once at startup. The functional-options shape
// (Option/apply/Resolve) is carried over from the teacher's LoopOption
// pattern, adapted from explicit constructor arguments to environment
// lookups with defaults.
package rtconfig

import (
	"os"
	"runtime"
	"strconv"
	"time"
)

// Backend names a pluggable async I/O backend selection.
type Backend string

const (
	BackendAuto Backend = "auto"
	BackendPoll Backend = "poll"
)

// Config is the fully resolved, process-wide runtime configuration.
type Config struct {
	Workers          int
	BlockingWorkers  int
	SpawnQueueCap    int
	BlockingQueueCap int
	TaskQueueSize    int
	TaskPoolSize     int
	RuntimeBackend   Backend
	DeadlockDetect   bool
	DeadlockAbort    bool
	DeadlockTimeout  time.Duration
	SpawnTiming      bool
}

// Option mutates a Config during resolution, applied after environment
// variables so callers can override or layer additional defaults.
type Option interface {
	apply(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) apply(c *Config) { f(c) }

// WithWorkers overrides the fiber scheduler's worker count.
func WithWorkers(n int) Option { return optionFunc(func(c *Config) { c.Workers = n }) }

// WithBlockingWorkers overrides the executor's worker count.
func WithBlockingWorkers(n int) Option {
	return optionFunc(func(c *Config) { c.BlockingWorkers = n })
}

// WithRuntimeBackend overrides the async I/O backend selection.
func WithRuntimeBackend(b Backend) Option {
	return optionFunc(func(c *Config) { c.RuntimeBackend = b })
}

// WithDeadlockDetect toggles the deadlock heuristic watchdog.
func WithDeadlockDetect(enabled bool) Option {
	return optionFunc(func(c *Config) { c.DeadlockDetect = enabled })
}

// WithDeadlockAbort toggles whether a suspected deadlock terminates the
// process (exit code 124) rather than only being logged.
func WithDeadlockAbort(enabled bool) Option {
	return optionFunc(func(c *Config) { c.DeadlockAbort = enabled })
}

// defaults returns the built-in defaults before environment variables or
// Options are applied.
func defaults() Config {
	return Config{
		Workers:          defaultWorkerCount(),
		BlockingWorkers:  32,
		SpawnQueueCap:    4096,
		BlockingQueueCap: 1024,
		TaskQueueSize:    4096,
		TaskPoolSize:     1024,
		RuntimeBackend:   BackendAuto,
		DeadlockDetect:   true,
		DeadlockAbort:    false,
		DeadlockTimeout:  5 * time.Second,
		SpawnTiming:      false,
	}
}

// Resolve builds a Config from built-in defaults, then the process
// environment (CC_WORKERS, CC_BLOCKING_WORKERS, CC_SPAWN_QUEUE_CAP,
// CC_BLOCKING_QUEUE_CAP, CC_TASK_QUEUE_SIZE, CC_TASK_POOL_SIZE,
// CC_RUNTIME_BACKEND, CC_DEADLOCK_DETECT, CC_DEADLOCK_ABORT,
// CC_DEADLOCK_TIMEOUT, CC_SPAWN_TIMING), then the given Options, in that
// order -- each later source overrides the one before it.
func Resolve(opts ...Option) Config {
	cfg := defaults()
	applyEnv(&cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(&cfg)
	}
	return cfg
}

func applyEnv(c *Config) {
	envInt("CC_WORKERS", &c.Workers)
	envInt("CC_BLOCKING_WORKERS", &c.BlockingWorkers)
	envInt("CC_SPAWN_QUEUE_CAP", &c.SpawnQueueCap)
	envInt("CC_BLOCKING_QUEUE_CAP", &c.BlockingQueueCap)
	envInt("CC_TASK_QUEUE_SIZE", &c.TaskQueueSize)
	envInt("CC_TASK_POOL_SIZE", &c.TaskPoolSize)
	envBackend("CC_RUNTIME_BACKEND", &c.RuntimeBackend)
	envBool("CC_DEADLOCK_DETECT", &c.DeadlockDetect)
	envBool("CC_DEADLOCK_ABORT", &c.DeadlockAbort)
	envDuration("CC_DEADLOCK_TIMEOUT", &c.DeadlockTimeout)
	envBool("CC_SPAWN_TIMING", &c.SpawnTiming)
}

func envInt(name string, dst *int) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		*dst = n
	}
}

func envBool(name string, dst *bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return
	}
	if b, err := strconv.ParseBool(v); err == nil {
		*dst = b
	}
}

func envDuration(name string, dst *time.Duration) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return
	}
	// Accept a bare integer as milliseconds (the C ABI's natural unit) as
	// well as a Go duration string, so CC_DEADLOCK_TIMEOUT=5000 and
	// CC_DEADLOCK_TIMEOUT=5s both work.
	if ms, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(ms) * time.Millisecond
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	}
}

func envBackend(name string, dst *Backend) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return
	}
	switch Backend(v) {
	case BackendAuto, BackendPoll:
		*dst = Backend(v)
	}
}

func defaultWorkerCount() int {
	if n := runtime.GOMAXPROCS(0); n > 0 {
		return n
	}
	return 4
}
