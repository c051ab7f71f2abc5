// Package logging is docspace's zap setup.
//
// Logger methods take a context and prepend the correlation fields carried
// there: trace_id and span_id from OpenTelemetry, plus workspace.id,
// document.id and request.id set by the HTTP layer and the Coordinator.
//
//	ctx = logging.WithWorkspaceID(ctx, ws.ID)
//	logger.Warn(ctx, "best-effort vector delete_collection failed", zap.Error(err))
//
// Each output (stdout, and the otelzap bridge when telemetry is on) passes
// through a redaction layer that masks credential keys such as api_key,
// document content, and bearer tokens, AWS key IDs and credentialed
// nats:// or redis:// URLs inside values. Debug and Info are sampled; Warn
// and above are always written.
//
// Stores and clients that want a plain *zap.Logger get Underlying(); context
// fields are not added on that path.
//
// Tests use NewTestLogger, which records entries unredacted and unsampled:
//
//	tl := logging.NewTestLogger()
//	tl.AssertField(t, "best-effort blob delete failed", "storage_key", key)
package logging
