package telemetry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type traceKey struct{}

// TraceContext carries correlation ids through the MCP request pipeline.
// Both agents talk to the relay through the same endpoint, so every log line
// tags the session and request that produced it; without this, interleaved
// traffic from two clients is impossible to untangle.
type TraceContext struct {
	SessionID string `json:"session_id"`
	RequestID string `json:"request_id"`
	Agent     string `json:"agent,omitempty"`
}

// NewTraceContext creates a trace context for a new MCP session.
func NewTraceContext(sessionID string) *TraceContext {
	return &TraceContext{
		SessionID: sessionID,
		RequestID: randomID(),
	}
}

// NextRequest returns a copy with a fresh RequestID, keeping the session and
// agent identity.
func (tc *TraceContext) NextRequest() *TraceContext {
	return &TraceContext{
		SessionID: tc.SessionID,
		RequestID: randomID(),
		Agent:     tc.Agent,
	}
}

// WithAgent returns a copy with the client agent name set.
func (tc *TraceContext) WithAgent(name string) *TraceContext {
	child := *tc
	child.Agent = name
	return &child
}

// Fields returns key-value pairs suitable for structured logging.
func (tc *TraceContext) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"session_id": tc.SessionID,
		"request_id": tc.RequestID,
	}
	if tc.Agent != "" {
		fields["agent"] = tc.Agent
	}
	return fields
}

// ContextWithTrace stores a TraceContext in the context.
func ContextWithTrace(ctx context.Context, tc *TraceContext) context.Context {
	return context.WithValue(ctx, traceKey{}, tc)
}

// TraceFromContext extracts a TraceContext from the context, or nil.
func TraceFromContext(ctx context.Context) *TraceContext {
	tc, _ := ctx.Value(traceKey{}).(*TraceContext)
	return tc
}

// WithTrace returns a logger enriched with trace fields from the context.
func (l *Logger) WithTrace(ctx context.Context) *Logger {
	tc := TraceFromContext(ctx)
	if tc == nil {
		return l
	}
	return l.WithFields(tc.Fields())
}

func randomID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
