package authcore

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func collectEvent(t *testing.T, sink *ChannelSink) AuditEvent {
	t.Helper()
	select {
	case event := <-sink.C:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("no audit event delivered")
		return AuditEvent{}
	}
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(16)
	d := newAuditDispatcher(sink, 16, true)

	for i := 0; i < 3; i++ {
		d.dispatch(AuditEvent{EventType: auditLoginSuccess, SubjectID: string(rune('a' + i))})
	}
	d.close()

	for i := 0; i < 3; i++ {
		event := collectEvent(t, sink)
		if event.SubjectID != string(rune('a'+i)) {
			t.Errorf("event %d out of order: %q", i, event.SubjectID)
		}
	}
}

func TestDispatcherDropsUnderBackpressure(t *testing.T) {
	block := make(chan struct{})
	d := newAuditDispatcher(blockingSink{block}, 1, true)

	// First event occupies the delivery goroutine, second fills the buffer,
	// the rest must be dropped rather than stall the caller.
	for i := 0; i < 10; i++ {
		d.dispatch(AuditEvent{EventType: auditDenied})
	}

	if d.droppedCount() == 0 {
		t.Error("no events dropped despite a full buffer")
	}

	close(block)
	d.close()
}

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Record(AuditEvent) { <-s.release }

func TestDispatchAfterCloseIsDropped(t *testing.T) {
	sink := NewChannelSink(16)
	d := newAuditDispatcher(sink, 16, true)
	d.close()
	d.close() // closing twice is fine

	d.dispatch(AuditEvent{EventType: auditLogout})

	if d.droppedCount() != 1 {
		t.Errorf("dropped = %d, want 1", d.droppedCount())
	}
	select {
	case event := <-sink.C:
		t.Errorf("event %q delivered after close", event.EventType)
	default:
	}
}

func TestDispatchConcurrentWithClose(t *testing.T) {
	d := newAuditDispatcher(NoOpSink{}, 4, true)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				d.dispatch(AuditEvent{EventType: auditDenied})
			}
		}()
	}

	// Racing shutdown against in-flight dispatches must not panic; late
	// events are dropped, not sent on a closed channel.
	d.close()
	wg.Wait()
}

func TestLoginEmitsAuditWithProvenance(t *testing.T) {
	sink := NewChannelSink(16)
	engine, _ := newTestEngine(t)
	replaceSink(engine, sink)

	seedUser(t, engine, "alice@example.com", "correct-password", RoleUser)
	drainSink(sink)

	ctx := WithClientIP(context.Background(), "192.0.2.9")
	ctx = WithUserAgent(ctx, "audit-test")

	if _, err := engine.Login(ctx, "alice@example.com", "correct-password"); err != nil {
		t.Fatalf("login: %v", err)
	}

	event := collectEvent(t, sink)
	if event.EventType != auditLoginSuccess {
		t.Errorf("event type = %q, want %q", event.EventType, auditLoginSuccess)
	}
	if event.IP != "192.0.2.9" || event.UserAgent != "audit-test" {
		t.Errorf("provenance = (%q, %q)", event.IP, event.UserAgent)
	}
	if !event.Success || event.SubjectID == "" || event.SessionID == "" {
		t.Errorf("event = %+v", event)
	}
}

func TestDenialAuditCarriesReason(t *testing.T) {
	sink := NewChannelSink(16)
	engine, _ := newTestEngine(t)
	replaceSink(engine, sink)

	if _, err := engine.Authenticate(context.Background(), "garbage"); err == nil {
		t.Fatal("garbage token accepted")
	}

	event := collectEvent(t, sink)
	if event.EventType != auditDenied {
		t.Fatalf("event type = %q, want %q", event.EventType, auditDenied)
	}
	if event.Metadata["reason"] != DeniedInvalidToken.String() {
		t.Errorf("reason = %q, want %q", event.Metadata["reason"], DeniedInvalidToken)
	}
	// The client-visible error stays generic; the reason lives only here.
	if event.Error != ErrUnauthorized.Error() {
		t.Errorf("error = %q", event.Error)
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Record(AuditEvent{EventType: auditLogout, SubjectID: "subject-1", Success: true})

	var decoded AuditEvent
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.EventType != auditLogout || decoded.SubjectID != "subject-1" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func replaceSink(engine *Engine, sink AuditSink) {
	if engine.audit != nil {
		engine.audit.close()
	}
	engine.audit = newAuditDispatcher(sink, 16, true)
}

func drainSink(sink *ChannelSink) {
	for {
		select {
		case <-sink.C:
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}
