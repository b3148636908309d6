package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent describes one security-relevant login event
type AuditEvent struct {
	EventType     string
	UserID        string
	Email         string // already masked with SanitizedEmail
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
}

// AuditLogger writes audit records through a structured logger
type AuditLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger: logger,
		now:    time.Now,
	}
}

func (al *AuditLogger) timestamp() slog.Attr {
	return slog.String("timestamp", al.now().UTC().Format(time.RFC3339))
}

// LogAuthAttempt logs a login decision. Refusals are logged at warn level.
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		al.timestamp(),
	}

	optional := []struct{ key, val string }{
		{"user_id", event.UserID},
		{"email", event.Email},
		{"ip_address", event.IPAddress},
		{"user_agent", event.UserAgent},
		{"failure_reason", event.FailureReason},
	}
	for _, o := range optional {
		if o.val != "" {
			attrs = append(attrs, slog.String(o.key, o.val))
		}
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

// LogAccountAction logs a change to an account's login state (ban imposed or lifted)
func (al *AuditLogger) LogAccountAction(eventType, userID, ipAddress string, metadata map[string]string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "account"),
		slog.String("event_type", eventType),
		al.timestamp(),
	}

	if userID != "" {
		attrs = append(attrs, slog.String("user_id", userID))
	}
	if ipAddress != "" {
		attrs = append(attrs, slog.String("ip_address", ipAddress))
	}
	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}
