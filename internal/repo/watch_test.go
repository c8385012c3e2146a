package repo

import (
	"testing"
	"time"
)

func TestWatcherReportsSettledChanges(t *testing.T) {
	s := newTestSession(t)
	changed := make(chan struct{}, 1)
	w, err := s.Watch(50*time.Millisecond, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer func() {
		if err := w.Close(); err != nil {
			t.Fatalf("close watcher: %v", err)
		}
	}()

	writeFile(t, s, "watched.txt", "content")
	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatalf("watcher never reported the change")
	}
}

func TestWatcherCloseIsIdempotent(t *testing.T) {
	s := newTestSession(t)
	w, err := s.Watch(0, func() {})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
