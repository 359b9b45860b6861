package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// recordEmitter is the slice of otellog.Logger the emitter needs.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// AuditEmitter mirrors audit events to an OTel log stream so they reach the
// collector alongside traces and metrics. It implements audit.AuditLogger and
// is typically fanned out next to the persisting logger.
type AuditEmitter struct {
	logger recordEmitter
}

// NewAuditEmitter returns an AuditEmitter over the given LoggerProvider.
// If provider is nil, a nil emitter is returned; nil emitters are no-ops.
func NewAuditEmitter(provider *sdklog.LoggerProvider) *AuditEmitter {
	if provider == nil {
		return nil
	}
	return &AuditEmitter{logger: provider.Logger("auth.audit")}
}

// NewAuditEmitterWithLogger is NewAuditEmitter over a raw logger, for tests.
func NewAuditEmitterWithLogger(logger recordEmitter) *AuditEmitter {
	return &AuditEmitter{logger: logger}
}

// LogEvent emits one audit event as an OTel log record. Best-effort.
func (e *AuditEmitter) LogEvent(ctx context.Context, accountID, action, resource, metadata string) {
	if e == nil || e.logger == nil {
		return
	}
	rec := otellog.Record{}
	rec.SetTimestamp(time.Now().UTC())
	rec.SetBody(otellog.StringValue(action))
	if accountID != "" {
		rec.AddAttributes(otellog.String("account_id", accountID))
	}
	if resource != "" {
		rec.AddAttributes(otellog.String("resource", resource))
	}
	if metadata != "" {
		rec.AddAttributes(otellog.String("metadata", metadata))
	}
	e.logger.Emit(ctx, rec)
}
