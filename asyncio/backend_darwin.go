//go:build darwin

package asyncio

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

type fdInfo struct {
	cb     Callback
	events Event
	active bool
}

// kqueueBackend implements Backend with a kqueue instance, adapted from the
// runtime's original FastPoller in the same spirit as the Linux epoll
// backend: a dynamically grown fd table guarded by an RWMutex, dispatched
// from a dedicated goroutine instead of an outer event-loop tick.
type kqueueBackend struct {
	kq       int32
	fdMu     sync.RWMutex
	fds      []fdInfo
	closed   atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewDefaultBackend returns a kqueue-backed Backend and starts its
// dispatch loop.
func NewDefaultBackend() (Backend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	b := &kqueueBackend{kq: int32(kq), fds: make([]fdInfo, 1024), stopCh: make(chan struct{})}
	b.wg.Add(1)
	go b.loop()
	return b, nil
}

func (b *kqueueBackend) growLocked(fd int) {
	if fd < len(b.fds) {
		return
	}
	grown := make([]fdInfo, fd*2+1)
	copy(grown, b.fds)
	b.fds = grown
}

func eventsToKevents(fd int, events Event, flags uint16) []unix.Kevent_t {
	var kevs []unix.Kevent_t
	if events&EventRead != 0 {
		kevs = append(kevs, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events&EventWrite != 0 {
		kevs = append(kevs, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return kevs
}

func (b *kqueueBackend) RegisterFD(fd int, events Event, cb Callback) error {
	if b.closed.Load() {
		return ErrBackendClosed
	}
	b.fdMu.Lock()
	b.growLocked(fd)
	if b.fds[fd].active {
		b.fdMu.Unlock()
		return ErrFDAlreadyRegistered
	}
	b.fds[fd] = fdInfo{cb: cb, events: events, active: true}
	b.fdMu.Unlock()

	kevs := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE)
	if len(kevs) > 0 {
		if _, err := unix.Kevent(int(b.kq), kevs, nil, nil); err != nil {
			b.fdMu.Lock()
			b.fds[fd] = fdInfo{}
			b.fdMu.Unlock()
			return err
		}
	}
	return nil
}

func (b *kqueueBackend) ModifyFD(fd int, events Event) error {
	b.fdMu.Lock()
	if fd >= len(b.fds) || !b.fds[fd].active {
		b.fdMu.Unlock()
		return ErrFDNotRegistered
	}
	old := b.fds[fd].events
	b.fds[fd].events = events
	b.fdMu.Unlock()

	if del := eventsToKevents(fd, old&^events, unix.EV_DELETE); len(del) > 0 {
		unix.Kevent(int(b.kq), del, nil, nil)
	}
	if add := eventsToKevents(fd, events&^old, unix.EV_ADD|unix.EV_ENABLE); len(add) > 0 {
		if _, err := unix.Kevent(int(b.kq), add, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

func (b *kqueueBackend) UnregisterFD(fd int) error {
	b.fdMu.Lock()
	if fd >= len(b.fds) || !b.fds[fd].active {
		b.fdMu.Unlock()
		return ErrFDNotRegistered
	}
	events := b.fds[fd].events
	b.fds[fd] = fdInfo{}
	b.fdMu.Unlock()

	if del := eventsToKevents(fd, events, unix.EV_DELETE); len(del) > 0 {
		unix.Kevent(int(b.kq), del, nil, nil)
	}
	return nil
}

func (b *kqueueBackend) Close() error {
	b.closed.Store(true)
	b.stopOnce.Do(func() { close(b.stopCh) })
	b.wg.Wait()
	return unix.Close(int(b.kq))
}

func (b *kqueueBackend) loop() {
	defer b.wg.Done()
	var events [256]unix.Kevent_t
	timeout := unix.NsecToTimespec(50_000_000)
	for {
		select {
		case <-b.stopCh:
			return
		default:
		}
		n, err := unix.Kevent(int(b.kq), nil, events[:], &timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Ident)
			b.fdMu.RLock()
			var info fdInfo
			if fd < len(b.fds) {
				info = b.fds[fd]
			}
			b.fdMu.RUnlock()
			if !info.active || info.cb == nil {
				continue
			}
			var e Event
			switch events[i].Filter {
			case unix.EVFILT_READ:
				e = EventRead
			case unix.EVFILT_WRITE:
				e = EventWrite
			}
			if events[i].Flags&unix.EV_EOF != 0 {
				e |= EventHangup
			}
			info.cb(e)
		}
	}
}
