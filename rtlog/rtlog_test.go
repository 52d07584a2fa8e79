package rtlog

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestDefaultLogger_GatesByLevel(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	l := NewDefaultLogger(LevelWarn)
	l.Out = w
	l.Log(Entry{Level: LevelInfo, Component: "test", Message: "should be dropped"})
	l.Log(Entry{Level: LevelError, Component: "test", Message: "should appear", Err: errors.New("boom")})
	w.Close()

	var buf bytes.Buffer
	buf.ReadFrom(r)
	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Fatalf("info line should have been gated out: %q", out)
	}
	if !strings.Contains(out, "should appear") || !strings.Contains(out, "boom") {
		t.Fatalf("error line missing from output: %q", out)
	}
}

func TestDefaultLogger_SetLevelChangesGate(t *testing.T) {
	l := NewDefaultLogger(LevelError)
	if l.IsEnabled(LevelInfo) {
		t.Fatal("expected info disabled at error level")
	}
	l.SetLevel(LevelInfo)
	if !l.IsEnabled(LevelInfo) {
		t.Fatal("expected info enabled after SetLevel")
	}
}

func TestGlobal_DefaultsToNoOp(t *testing.T) {
	if Global().IsEnabled(LevelDebug) {
		t.Fatal("expected NoOpLogger default to report disabled")
	}
}

func TestGlobal_SetAndRestore(t *testing.T) {
	prev := Global()
	defer SetGlobal(prev)

	l := NewDefaultLogger(LevelDebug)
	SetGlobal(l)
	if Global() != Logger(l) {
		t.Fatal("expected Global to return installed logger")
	}
}
