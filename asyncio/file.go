//go:build !windows

package asyncio

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/sreekotay/ccrt/task"
	"golang.org/x/sys/unix"
)

var errEOF = io.EOF

// File is a non-blocking fd registered with a Backend, exposing its
// operations as task.Task values rather than blocking calls: a caller
// drives completion with task.Block (optionally bounded by a Deadline) or
// folds several Files' operations together with the task combinators.
type File struct {
	fd      int
	backend Backend

	mu      sync.Mutex
	lineBuf bytes.Buffer
}

// Open opens path with flag/perm (as os.OpenFile) and registers the
// resulting fd with backend (DefaultBackend if nil).
func Open(path string, flag int, perm os.FileMode, backend Backend) (*File, error) {
	if backend == nil {
		var err error
		backend, err = DefaultBackend()
		if err != nil {
			return nil, err
		}
	}
	fd, err := unix.Open(path, flag, uint32(perm))
	if err != nil {
		return nil, err
	}
	unix.SetNonblock(fd, true)
	return &File{fd: fd, backend: backend}, nil
}

// FromFD wraps an already-open, already-nonblocking fd.
func FromFD(fd int, backend Backend) (*File, error) {
	if backend == nil {
		var err error
		backend, err = DefaultBackend()
		if err != nil {
			return nil, err
		}
	}
	return &File{fd: fd, backend: backend}, nil
}

// Close unregisters and closes the underlying fd.
func (f *File) Close() error {
	f.backend.UnregisterFD(f.fd)
	return unix.Close(f.fd)
}

// Read returns a Task that resolves with up to len(buf) bytes read into
// buf (n, nil) once the fd becomes readable, or rejects with the read
// error (including io.EOF-equivalent zero-length reads surfaced as n==0,
// nil per os.File convention -- callers checking for end-of-stream should
// treat a successful zero-length read as EOF).
func (f *File) Read(buf []byte) *task.Task[int] {
	tk, resolve, reject := task.New[int](task.Future)
	var once sync.Once
	register := func() {
		err := f.backend.RegisterFD(f.fd, EventRead, func(Event) {
			once.Do(func() {
				f.backend.UnregisterFD(f.fd)
				n, err := unix.Read(f.fd, buf)
				if err != nil {
					reject(err)
					return
				}
				resolve(n)
			})
		})
		if err != nil {
			reject(err)
		}
	}
	register()
	return tk
}

// ReadAll returns a Task that resolves once the fd reports EOF (a
// zero-length read), with every byte read in between.
func (f *File) ReadAll() *task.Task[[]byte] {
	tk, resolve, reject := task.New[[]byte](task.Future)
	var acc bytes.Buffer
	var step func()
	chunk := make([]byte, 4096)
	step = func() {
		err := f.backend.RegisterFD(f.fd, EventRead, func(Event) {
			f.backend.UnregisterFD(f.fd)
			n, err := unix.Read(f.fd, chunk)
			if err != nil {
				reject(err)
				return
			}
			if n > 0 {
				acc.Write(chunk[:n])
			}
			if n == 0 {
				resolve(append([]byte(nil), acc.Bytes()...))
				return
			}
			step()
		})
		if err != nil {
			reject(err)
		}
	}
	step()
	return tk
}

// ReadLine returns a Task that resolves with the next '\n'-terminated line
// (delimiter stripped), buffering any bytes read past the delimiter for the
// next ReadLine call. EOF with a non-empty trailing partial line resolves
// with that partial line; EOF with nothing buffered rejects with io.EOF.
func (f *File) ReadLine() *task.Task[string] {
	tk, resolve, reject := task.New[string](task.Future)

	f.mu.Lock()
	if idx := bytes.IndexByte(f.lineBuf.Bytes(), '\n'); idx >= 0 {
		line := string(f.lineBuf.Next(idx + 1)[:idx])
		f.mu.Unlock()
		resolve(line)
		return tk
	}
	f.mu.Unlock()

	chunk := make([]byte, 4096)
	var step func()
	step = func() {
		err := f.backend.RegisterFD(f.fd, EventRead, func(Event) {
			f.backend.UnregisterFD(f.fd)
			n, err := unix.Read(f.fd, chunk)
			if err != nil {
				reject(err)
				return
			}
			if n == 0 {
				f.mu.Lock()
				remaining := f.lineBuf.Len()
				f.mu.Unlock()
				if remaining > 0 {
					f.mu.Lock()
					line := f.lineBuf.String()
					f.lineBuf.Reset()
					f.mu.Unlock()
					resolve(line)
					return
				}
				reject(errEOF)
				return
			}
			f.mu.Lock()
			f.lineBuf.Write(chunk[:n])
			idx := bytes.IndexByte(f.lineBuf.Bytes(), '\n')
			var line string
			var found bool
			if idx >= 0 {
				line = string(f.lineBuf.Next(idx + 1)[:idx])
				found = true
			}
			f.mu.Unlock()
			if found {
				resolve(line)
				return
			}
			step()
		})
		if err != nil {
			reject(err)
		}
	}
	step()
	return tk
}

// Write returns a Task that resolves with the number of bytes written once
// the fd becomes writable.
func (f *File) Write(buf []byte) *task.Task[int] {
	tk, resolve, reject := task.New[int](task.Future)
	err := f.backend.RegisterFD(f.fd, EventWrite, func(Event) {
		f.backend.UnregisterFD(f.fd)
		n, err := unix.Write(f.fd, buf)
		if err != nil {
			reject(err)
			return
		}
		resolve(n)
	})
	if err != nil {
		reject(err)
	}
	return tk
}
