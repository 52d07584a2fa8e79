package rtlog

import (
	"errors"
	"testing"

	"github.com/joeycumines/logiface"
)

// fakeEvent is a minimal logiface.Event recording fields in a map, enough
// to assert FromLogiface routes level, message, fields and errors through.
type fakeEvent struct {
	logiface.UnimplementedEvent
	level   logiface.Level
	message string
	fields  map[string]any
}

func (e *fakeEvent) Level() logiface.Level { return e.level }

func (e *fakeEvent) AddField(key string, val any) {
	if e.fields == nil {
		e.fields = make(map[string]any)
	}
	e.fields[key] = val
}

func (e *fakeEvent) AddMessage(msg string) bool {
	e.message = msg
	return true
}

func (e *fakeEvent) AddError(err error) bool {
	e.AddField("error", err)
	return true
}

func newFakeLogger(sink *[]*fakeEvent, level logiface.Level) *logiface.Logger[*fakeEvent] {
	return logiface.New[*fakeEvent](
		logiface.WithLevel[*fakeEvent](level),
		logiface.WithEventFactory[*fakeEvent](logiface.NewEventFactoryFunc(func(l logiface.Level) *fakeEvent {
			return &fakeEvent{level: l}
		})),
		logiface.WithWriter[*fakeEvent](logiface.NewWriterFunc(func(e *fakeEvent) error {
			*sink = append(*sink, e)
			return nil
		})),
	)
}

func TestFromLogiface_LogRoutesFieldsAndMessage(t *testing.T) {
	var sink []*fakeEvent
	l := newFakeLogger(&sink, logiface.LevelDebug)
	adapted := FromLogiface(l)

	adapted.Log(Entry{
		Level:     LevelInfo,
		Component: "fiber",
		Message:   "worker started",
		Fields:    map[string]any{"worker_id": 3},
		Err:       errors.New("boom"),
	})

	if len(sink) != 1 {
		t.Fatalf("expected 1 event written, got %d", len(sink))
	}
	ev := sink[0]
	if ev.message != "worker started" {
		t.Fatalf("expected message to be routed, got %q", ev.message)
	}
	if ev.fields["component"] != "fiber" {
		t.Fatalf("expected component field, got %+v", ev.fields)
	}
	if ev.fields["worker_id"] != 3 {
		t.Fatalf("expected worker_id field, got %+v", ev.fields)
	}
	if ev.fields["error"] == nil {
		t.Fatalf("expected error field to be set, got %+v", ev.fields)
	}
}

func TestFromLogiface_IsEnabledReflectsConfiguredLevel(t *testing.T) {
	var sink []*fakeEvent
	l := newFakeLogger(&sink, logiface.LevelWarning)
	adapted := FromLogiface(l)

	if adapted.IsEnabled(LevelInfo) {
		t.Fatal("expected info disabled when configured at warning")
	}
	if !adapted.IsEnabled(LevelError) {
		t.Fatal("expected error enabled when configured at warning")
	}
}
