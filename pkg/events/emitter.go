// Package events handles audit event emission for workspace activity
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes workspace audit events. A nil Emitter is safe to use and
// drops every event, so callers don't have to guard for Kafka being disabled.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

func (e *Emitter) emit(ctx context.Context, event *kafka.WorkspaceEvent) error {
	if e == nil || e.producer == nil {
		return nil
	}

	if err := e.producer.PublishWorkspaceEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", event.EventType)
		return err
	}
	return nil
}

// EmitResourceCreated emits a <resourceType>.created event
func (e *Emitter) EmitResourceCreated(ctx context.Context, workspaceID, actorID, resourceType, resourceID string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitResourceCreated")
	defer span.End()

	return e.emit(ctx, &kafka.WorkspaceEvent{
		EventType:    resourceType + ".created",
		WorkspaceID:  workspaceID,
		ActorID:      actorID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	})
}

// EmitResourceDeleted emits a <resourceType>.deleted event
func (e *Emitter) EmitResourceDeleted(ctx context.Context, workspaceID, actorID, resourceType, resourceID string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitResourceDeleted")
	defer span.End()

	return e.emit(ctx, &kafka.WorkspaceEvent{
		EventType:    resourceType + ".deleted",
		WorkspaceID:  workspaceID,
		ActorID:      actorID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	})
}

// EmitArtifactsApplied emits an event describing workflow changes applied
// from an assistant session.
func (e *Emitter) EmitArtifactsApplied(ctx context.Context, workspaceID, actorID, sessionID string, created map[string][]string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitArtifactsApplied")
	defer span.End()

	data := map[string]any{
		"schema_version": SchemaVersion,
		"created":        created,
	}
	dataJSON, _ := json.Marshal(data)

	return e.emit(ctx, &kafka.WorkspaceEvent{
		EventType:    "session.artifacts_applied",
		WorkspaceID:  workspaceID,
		ActorID:      actorID,
		ResourceType: "session",
		ResourceID:   sessionID,
		Data:         dataJSON,
	})
}

// EmitUsageCharged emits an event for Intelligence Cost Units charged to a workspace.
func (e *Emitter) EmitUsageCharged(ctx context.Context, workspaceID, actorID, action string, icus int64) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitUsageCharged")
	defer span.End()

	data := map[string]any{
		"schema_version": SchemaVersion,
		"action":         action,
		"icus":           icus,
	}
	dataJSON, _ := json.Marshal(data)

	return e.emit(ctx, &kafka.WorkspaceEvent{
		EventType:    "usage.charged",
		WorkspaceID:  workspaceID,
		ActorID:      actorID,
		ResourceType: "usage",
		ResourceID:   workspaceID,
		Data:         dataJSON,
	})
}

// EmitAccountDeleted emits an event when a user account is erased.
func (e *Emitter) EmitAccountDeleted(ctx context.Context, userID string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitAccountDeleted")
	defer span.End()

	return e.emit(ctx, &kafka.WorkspaceEvent{
		EventType:    "account.deleted",
		ActorID:      userID,
		ResourceType: "user",
		ResourceID:   userID,
	})
}
