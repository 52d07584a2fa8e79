//go:build linux || darwin

package asyncio

import (
	"testing"
	"time"

	"github.com/sreekotay/ccrt/deadline"
	"golang.org/x/sys/unix"
)

func pipeFiles(t *testing.T, backend Backend) (*File, *File) {
	t.Helper()
	fds := make([]int, 2)
	if err := unix.Pipe(fds); err != nil {
		t.Fatal(err)
	}
	unix.SetNonblock(fds[0], true)
	unix.SetNonblock(fds[1], true)
	r, err := FromFD(fds[0], backend)
	if err != nil {
		t.Fatal(err)
	}
	w, err := FromFD(fds[1], backend)
	if err != nil {
		t.Fatal(err)
	}
	return r, w
}

func TestFile_WriteThenReadRoundTrip(t *testing.T) {
	backend, err := NewDefaultBackend()
	if err != nil {
		t.Fatal(err)
	}
	defer backend.Close()

	r, w := pipeFiles(t, backend)
	defer r.Close()
	defer w.Close()

	wTask := w.Write([]byte("hello"))
	if n, err := wTask.Block(deadline.After(time.Second)); err != nil || n != 5 {
		t.Fatalf("write: (%d, %v)", n, err)
	}

	buf := make([]byte, 16)
	rTask := r.Read(buf)
	n, err := rTask.Block(deadline.After(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("got %q", buf[:n])
	}
}

func TestFile_ReadLineSplitsOnNewline(t *testing.T) {
	backend, err := NewDefaultBackend()
	if err != nil {
		t.Fatal(err)
	}
	defer backend.Close()

	r, w := pipeFiles(t, backend)
	defer r.Close()
	defer w.Close()

	go func() {
		w.Write([]byte("line one\nline two\n")).Block(deadline.After(time.Second))
	}()

	l1, err := r.ReadLine().Block(deadline.After(time.Second))
	if err != nil || l1 != "line one" {
		t.Fatalf("got (%q, %v)", l1, err)
	}
	l2, err := r.ReadLine().Block(deadline.After(time.Second))
	if err != nil || l2 != "line two" {
		t.Fatalf("got (%q, %v)", l2, err)
	}
}

func TestFile_ReadAllAccumulatesUntilEOF(t *testing.T) {
	backend, err := NewDefaultBackend()
	if err != nil {
		t.Fatal(err)
	}
	defer backend.Close()

	r, w := pipeFiles(t, backend)
	defer r.Close()

	go func() {
		w.Write([]byte("abc")).Block(deadline.After(time.Second))
		w.Write([]byte("def")).Block(deadline.After(time.Second))
		w.Close()
	}()

	got, err := r.ReadAll().Block(deadline.After(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "abcdef" {
		t.Fatalf("got %q", got)
	}
}
