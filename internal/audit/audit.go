package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/vaidya/internal/db"
)

const (
	ActorPatient = "patient"
	ActorSystem  = "system"
)

type Event struct {
	ActorID    *uuid.UUID
	ActorType  string
	Action     string
	EntityType string
	EntityID   *uuid.UUID
	Metadata   map[string]any
	CreatedAt  time.Time
}

// Recorder appends to the audit trail. Nothing in the engine reads it back.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

type PgRecorder struct {
	db db.DBTX
}

func NewPgRecorder(db db.DBTX) *PgRecorder {
	return &PgRecorder{db: db}
}

func (r *PgRecorder) Record(ctx context.Context, ev Event) error {
	var payload []byte
	if len(ev.Metadata) > 0 {
		b, err := json.Marshal(ev.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
		payload = b
	}

	var createdAt *time.Time
	if !ev.CreatedAt.IsZero() {
		createdAt = &ev.CreatedAt
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_logs (actor_id, actor_type, action, entity_type, entity_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
	`, ev.ActorID, ev.ActorType, ev.Action, ev.EntityType, ev.EntityID, payload, createdAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// Log records ev and only logs a failure; audit writes never fail the caller.
func Log(ctx context.Context, rec Recorder, logger *zap.Logger, ev Event) {
	if rec == nil {
		return
	}
	if err := rec.Record(ctx, ev); err != nil && logger != nil {
		logger.Warn("audit write failed", zap.String("action", ev.Action), zap.Error(err))
	}
}
