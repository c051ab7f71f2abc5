package logging

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 8)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if workspaceID := WorkspaceIDFromContext(ctx); workspaceID != "" {
		fields = append(fields, zap.String("workspace.id", workspaceID))
	}

	if documentID := DocumentIDFromContext(ctx); documentID != "" {
		fields = append(fields, zap.String("document.id", documentID))
	}

	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

type workspaceCtxKey struct{}
type documentCtxKey struct{}
type requestCtxKey struct{}

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func validateID(id, name string) error {
	if id == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("%s contains invalid UTF-8", name)
	}
	if len(id) > maxIDLen {
		return fmt.Errorf("%s exceeds max length %d", name, maxIDLen)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (must be alphanumeric, hyphen, underscore)", name)
	}
	return nil
}

// WorkspaceIDFromContext extracts the workspace ID from context.
func WorkspaceIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(workspaceCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithWorkspaceID adds the workspace ID to context.
// IDs arrive from request paths, so an invalid ID leaves ctx unchanged
// rather than panicking.
func WithWorkspaceID(ctx context.Context, workspaceID string) context.Context {
	if validateID(workspaceID, "workspaceID") != nil {
		return ctx
	}
	return context.WithValue(ctx, workspaceCtxKey{}, workspaceID)
}

// DocumentIDFromContext extracts the document ID from context.
func DocumentIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(documentCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithDocumentID adds the document ID to context. Invalid IDs are ignored.
func WithDocumentID(ctx context.Context, documentID string) context.Context {
	if validateID(documentID, "documentID") != nil {
		return ctx
	}
	return context.WithValue(ctx, documentCtxKey{}, documentID)
}

// RequestIDFromContext extracts request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithRequestID adds request ID to context.
// Panics if requestID is empty or contains invalid characters.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if err := validateID(requestID, "requestID"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}
