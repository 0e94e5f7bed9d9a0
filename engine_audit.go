package authcore

import (
	"context"
	"time"
)

func (e *Engine) emitAudit(ctx context.Context, eventType, subjectID, sessionID string, success bool, cause error) {
	e.emitAuditMeta(ctx, eventType, subjectID, sessionID, success, cause, nil)
}

func (e *Engine) emitAuditMeta(ctx context.Context, eventType, subjectID, sessionID string, success bool, cause error, metadata map[string]string) {
	if e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		SubjectID: subjectID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if cause != nil {
		event.Error = cause.Error()
	}

	e.audit.dispatch(event)
}
