package orchestrator

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/hupe1980/chatmesh/orchestrator"

var tracer = otel.Tracer(scopeName)

func turnAttributes(t *Turn) []attribute.KeyValue {
	tokens := make([]string, 0, len(t.Participants))
	for _, p := range t.Participants {
		tokens = append(tokens, p.Token())
	}
	return []attribute.KeyValue{
		attribute.String("chatmesh.turn.id", t.ID),
		attribute.String("chatmesh.session.id", t.SessionID),
		attribute.String("chatmesh.turn.mode", string(t.Mode)),
		attribute.StringSlice("chatmesh.turn.participants", tokens),
	}
}

func recordSpanError(span trace.Span, err error) {
	if err == nil || isCancelled(err) {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
