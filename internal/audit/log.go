// Package audit is the write-only trail of completed ledger changes. Entries
// fan out to one or more sinks; a failing sink is reported and skipped.
package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"tabung.org/internal/ids"
	"tabung.org/internal/obs"
)

type ctxKey string

const sessionIDKey ctxKey = "audit_session_id"

// WithSessionID attaches the operator session identifier to the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

func sessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

// Entry is one audit event.
type Entry struct {
	ID        string         `json:"id"`
	Time      time.Time      `json:"ts"`
	Text      string         `json:"event"`
	SessionID string         `json:"session_id,omitempty"`
	Fields    map[string]any `json:"fields"`
}

// Sink stores entries somewhere durable.
type Sink interface {
	Write(ctx context.Context, e Entry) error
	Close() error
}

// Log records entries to every sink.
type Log struct {
	sinks []Sink
	now   func() time.Time
}

// New returns a Log writing to sinks in order.
func New(sinks ...Sink) *Log {
	return &Log{sinks: sinks, now: time.Now}
}

// Record appends event to every sink. Sink failures become warnings: the
// change being recorded has already been persisted.
func (l *Log) Record(ctx context.Context, event string, fields map[string]any) {
	event = strings.TrimSpace(event)
	if event == "" {
		obs.Warn("audit event without text dropped", nil)
		return
	}
	e := Entry{
		ID:        ids.New(),
		Time:      l.now(),
		Text:      event,
		SessionID: sessionIDFromContext(ctx),
		Fields:    map[string]any{},
	}
	for k, v := range fields {
		e.Fields[k] = v
	}
	for _, s := range l.sinks {
		if err := s.Write(ctx, e); err != nil {
			obs.Warn("audit sink write failed", map[string]any{
				"event": event,
				"error": err.Error(),
			})
		}
	}
}

// Close closes every sink and returns the first error.
func (l *Log) Close() error {
	var first error
	for _, s := range l.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// JSONSink mirrors entries to the structured logger.
type JSONSink struct{}

func (JSONSink) Write(_ context.Context, e Entry) error {
	entry := map[string]any{
		"ts":     e.Time.UTC().Format(time.RFC3339Nano),
		"type":   "audit",
		"id":     e.ID,
		"event":  e.Text,
		"fields": e.Fields,
	}
	if e.SessionID != "" {
		entry["session_id"] = e.SessionID
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}

func (JSONSink) Close() error { return nil }
