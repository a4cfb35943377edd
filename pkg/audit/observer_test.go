package audit

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/crewdesk/crewdesk/pkg/authz"
	"github.com/crewdesk/crewdesk/pkg/observability"
)

type captureLogger struct {
	mu     sync.Mutex
	events []*Event
	done   chan struct{}
}

func (c *captureLogger) Log(ctx context.Context, event *Event) error {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	c.done <- struct{}{}
	return nil
}

func TestDenialObserverRecordsDenials(t *testing.T) {
	capture := &captureLogger{done: make(chan struct{}, 1)}
	log := observability.NewLogger(slog.LevelError, &bytes.Buffer{})
	observe := DenialObserver(capture, log)

	observe("user-dev", authz.ResourceProject, authz.OperationUpdate,
		authz.Target{ProjectID: 42},
		authz.Decision{
			Allowed:   false,
			Reason:    "role developer may not update projects",
			Role:      authz.RoleDeveloper,
			CheckedAt: time.Now(),
		})

	select {
	case <-capture.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit write")
	}

	capture.mu.Lock()
	defer capture.mu.Unlock()
	if len(capture.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(capture.events))
	}

	event := capture.events[0]
	if event.EventType != EventTypeAuthzAccessDenied {
		t.Errorf("unexpected event type: %s", event.EventType)
	}
	if event.UserID != "user-dev" {
		t.Errorf("unexpected user: %s", event.UserID)
	}
	if event.ResourceID != "42" {
		t.Errorf("unexpected resource id: %s", event.ResourceID)
	}
	if event.Role != "developer" {
		t.Errorf("unexpected role: %s", event.Role)
	}
}

func TestDenialObserverSkipsAllowed(t *testing.T) {
	capture := &captureLogger{done: make(chan struct{}, 1)}
	log := observability.NewLogger(slog.LevelError, &bytes.Buffer{})
	observe := DenialObserver(capture, log)

	observe("user-admin", authz.ResourceProject, authz.OperationRead,
		authz.Target{ProjectID: 1},
		authz.Decision{Allowed: true, Role: authz.RoleAdmin, CheckedAt: time.Now()})

	select {
	case <-capture.done:
		t.Fatal("allowed decision should not be recorded")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTargetID(t *testing.T) {
	if got := targetID(authz.ResourceProfile, authz.Target{ProfileID: "user-a"}); got != "user-a" {
		t.Errorf("unexpected profile target id: %s", got)
	}
	if got := targetID(authz.ResourceObject, authz.Target{ObjectKey: "projects/1/doc.pdf"}); got != "projects/1/doc.pdf" {
		t.Errorf("unexpected object target id: %s", got)
	}
	if got := targetID(authz.ResourceAssignment, authz.Target{ProjectID: 9}); got != "9" {
		t.Errorf("unexpected assignment target id: %s", got)
	}
}
