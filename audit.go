package authcore

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Audit event types emitted by the engine.
const (
	auditLoginSuccess   = "login_success"
	auditLoginFailure   = "login_failure"
	auditLogout         = "logout"
	auditLogoutAll      = "logout_all"
	auditRefreshed      = "session_refreshed"
	auditRefreshFailure = "refresh_failure"
	auditDenied         = "auth_denied"
	auditRegistered     = "register_success"
	auditRegisterFailed = "register_failure"
	auditPasswordReset  = "password_reset"
)

// AuditEvent is one security-relevant occurrence. IP and UserAgent come from
// the request context when the caller attached them via [WithClientIP] and
// [WithUserAgent].
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	SubjectID string            `json:"subject_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives audit events from the dispatcher. Record must not
// block for long; slow sinks cause event drops, not engine stalls.
type AuditSink interface {
	Record(event AuditEvent)
}

// NoOpSink discards every event.
type NoOpSink struct{}

func (NoOpSink) Record(AuditEvent) {}

// ChannelSink forwards events to a channel, dropping when it is full.
// Useful in tests and for custom fan-out.
type ChannelSink struct {
	C chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{C: make(chan AuditEvent, buffer)}
}

func (s *ChannelSink) Record(event AuditEvent) {
	select {
	case s.C <- event:
	default:
	}
}

// JSONWriterSink writes events as JSON lines to an io.Writer.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

func (s *JSONWriterSink) Record(event AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(event)
}
