// Package monitoring records safety-policy blocks as audit events.
package monitoring

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/cache"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/observability"
)

// DefaultChannel is the Redis channel block events are published on.
const DefaultChannel = "link-blocks"

// BlockEvent describes one link rejected by the safety policy.
type BlockEvent struct {
	ID         uuid.UUID `json:"id"`
	Option     string    `json:"option,omitempty"`
	URL        string    `json:"url"`
	Title      string    `json:"title,omitempty"`
	Reason     string    `json:"reason"`
	Category   string    `json:"category,omitempty"`
	HighRisk   bool      `json:"highRisk"`
	Flow       string    `json:"flow"`
	TraceID    string    `json:"traceId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// AuditLogger logs block events and, when a publisher is configured,
// publishes them for downstream consumers.
type AuditLogger struct {
	logger    *observability.Logger
	publisher cache.Publisher
	channel   string
}

// NewAuditLogger creates a new audit logger. publisher may be nil.
func NewAuditLogger(logger *observability.Logger, publisher cache.Publisher, channel string) *AuditLogger {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &AuditLogger{
		logger:    logger.WithComponent("audit"),
		publisher: publisher,
		channel:   channel,
	}
}

// Channel returns the channel block events are published on.
func (a *AuditLogger) Channel() string { return a.channel }

// RecordBlock records a block event. Publishing failures are logged, never returned.
func (a *AuditLogger) RecordBlock(ctx context.Context, event BlockEvent) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if event.TraceID == "" {
		event.TraceID = observability.TraceIDFromContext(ctx)
	}

	var evt *observability.LogEvent
	if event.HighRisk {
		evt = a.logger.Warn()
	} else {
		evt = a.logger.Info()
	}
	evt.Str("event_id", event.ID.String()).
		Str("option", event.Option).
		Str("url", event.URL).
		Str("reason", event.Reason).
		Str("category", event.Category).
		Bool("high_risk", event.HighRisk).
		Str("flow", event.Flow).
		Msg("Link blocked")

	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(ctx, a.channel, event); err != nil {
		a.logger.Error().Err(err).Str("event_id", event.ID.String()).Msg("Failed to publish block event")
	}
}
