//go:build windows

package asyncio

import (
	"bufio"
	"io"
	"os"

	"github.com/sreekotay/ccrt/task"
)

var errEOF = os.ErrClosed

// File on Windows wraps an *os.File directly rather than riding the
// fd-readiness Backend: true IOCP integration (as the runtime's original
// poller_windows.go does, tied into its own loop tick) is out of scope
// here, and Go's os.File already dispatches blocking reads/writes onto the
// runtime's own thread pool, so each operation below just runs on a
// goroutine and resolves its Task from there.
type File struct {
	f  *os.File
	br *bufio.Reader
}

// Open opens path with flag/perm. backend is accepted for API symmetry
// with the Unix implementation and ignored.
func Open(path string, flag int, perm os.FileMode, backend Backend) (*File, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}
	return &File{f: f, br: bufio.NewReader(f)}, nil
}

// FromFD wraps an already-open fd.
func FromFD(fd int, backend Backend) (*File, error) {
	f := os.NewFile(uintptr(fd), "")
	return &File{f: f, br: bufio.NewReader(f)}, nil
}

func (f *File) Close() error { return f.f.Close() }

func (f *File) Read(buf []byte) *task.Task[int] {
	tk, resolve, reject := task.New[int](task.Future)
	go func() {
		n, err := f.br.Read(buf)
		if err != nil && n == 0 {
			reject(err)
			return
		}
		resolve(n)
	}()
	return tk
}

func (f *File) ReadAll() *task.Task[[]byte] {
	tk, resolve, reject := task.New[[]byte](task.Future)
	go func() {
		buf := make([]byte, 0, 4096)
		chunk := make([]byte, 4096)
		for {
			n, err := f.br.Read(chunk)
			if n > 0 {
				buf = append(buf, chunk[:n]...)
			}
			if err == io.EOF {
				resolve(buf)
				return
			}
			if err != nil {
				reject(err)
				return
			}
		}
	}()
	return tk
}

func (f *File) ReadLine() *task.Task[string] {
	tk, resolve, reject := task.New[string](task.Future)
	go func() {
		line, err := f.br.ReadString('\n')
		if err != nil && line == "" {
			reject(err)
			return
		}
		for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
			line = line[:len(line)-1]
		}
		resolve(line)
	}()
	return tk
}

func (f *File) Write(buf []byte) *task.Task[int] {
	tk, resolve, reject := task.New[int](task.Future)
	go func() {
		n, err := f.f.Write(buf)
		if err != nil {
			reject(err)
			return
		}
		resolve(n)
	}()
	return tk
}
