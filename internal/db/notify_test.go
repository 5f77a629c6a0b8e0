package db

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/paramkeep/paramkeep/internal/models"
)

type recordingHub struct {
	events []string
	orgs   []string
	data   []json.RawMessage
}

func (h *recordingHub) BroadcastEvent(eventType, orgID string, data json.RawMessage) {
	h.events = append(h.events, eventType)
	h.orgs = append(h.orgs, orgID)
	h.data = append(h.data, data)
}

type recordingListener struct {
	calls []string
}

func (l *recordingListener) HandleAuditEvent(orgID string, objectType models.ObjectType, action models.Action) {
	l.calls = append(l.calls, orgID+"|"+string(objectType)+"|"+string(action))
}

func newTestBridge(hub Broadcaster, listeners ...AuditEventListener) *NotifyBridge {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewNotifyBridge(log, nil, hub, listeners...)
}

func TestHandleNotification_Forwards(t *testing.T) {
	hub := &recordingHub{}
	listener := &recordingListener{}
	b := newTestBridge(hub, listener)

	payload := `{"org_id":"org-1","id":12,"object_type":"Environment","object_name":"staging","action":"delete","user":"alice","timestamp":"2024-05-01T12:00:00Z"}`
	b.handleNotification(&pgconn.Notification{Channel: listenChannel, Payload: payload})

	if len(hub.events) != 1 || hub.events[0] != "audit.entry" || hub.orgs[0] != "org-1" {
		t.Fatalf("hub got events=%v orgs=%v", hub.events, hub.orgs)
	}
	if string(hub.data[0]) != payload {
		t.Errorf("data = %s, want original payload", hub.data[0])
	}
	if len(listener.calls) != 1 || listener.calls[0] != "org-1|Environment|delete" {
		t.Errorf("listener calls = %v", listener.calls)
	}
}

func TestHandleNotification_DropsWithoutOrg(t *testing.T) {
	hub := &recordingHub{}
	listener := &recordingListener{}
	b := newTestBridge(hub, listener)

	for _, payload := range []string{`{"id":1}`, `not json`} {
		b.handleNotification(&pgconn.Notification{Channel: listenChannel, Payload: payload})
	}

	if len(hub.events) != 0 || len(listener.calls) != 0 {
		t.Errorf("expected nothing forwarded, hub=%v listener=%v", hub.events, listener.calls)
	}
}

func TestAuditNotification_Decodes(t *testing.T) {
	var n AuditNotification
	err := json.Unmarshal([]byte(`{"org_id":"o","id":3,"event_id":"e","object_type":"Value","object_name":"p:prod","action":"update","user":"bob","timestamp":"2024-05-01T12:00:00.123456+00:00"}`), &n)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n.ObjectType != models.ObjectValue || n.Action != models.ActionUpdate || n.ID != 3 {
		t.Errorf("decoded = %+v", n)
	}
	if !n.Timestamp.Equal(time.Date(2024, 5, 1, 12, 0, 0, 123456000, time.UTC)) {
		t.Errorf("timestamp = %s", n.Timestamp)
	}
}

func TestNextBackoff_Capped(t *testing.T) {
	d := initialBackoff
	for range 20 {
		d = nextBackoff(d)
		if d > maxBackoff+maxBackoff/4 {
			t.Fatalf("backoff %s exceeds cap with jitter", d)
		}
	}
}
