package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
)

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (
			id, event_type, payload, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`
	now := time.Now().UTC()
	event.ID = uuid.New()
	event.Status = model.OutboxStatusPending
	event.CreatedAt = now
	event.UpdatedAt = now

	_, err := r.q(ctx).ExecContext(ctx, query,
		event.ID,
		event.EventType,
		[]byte(event.Payload),
		event.Status,
		event.CreatedAt,
		event.UpdatedAt,
	)
	return mapError(err, "failed to create outbox event")
}

// ClaimPending runs fn in a transaction holding row locks on the claimed events, so
// concurrent workers never see the same event. Status updates made by fn through ctx
// commit together with the claim.
func (r *outboxRepository) ClaimPending(ctx context.Context, limit int, fn func(ctx context.Context, events []*model.OutboxEvent) error) error {
	return r.WithinTx(ctx, func(ctx context.Context) error {
		query := `
			SELECT id, event_type, payload, status, error_message, retry_count,
				created_at, updated_at, processed_at
			FROM outbox_events
			WHERE status = $1
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		`
		var events []*model.OutboxEvent
		if err := r.q(ctx).SelectContext(ctx, &events, query, model.OutboxStatusPending, limit); err != nil {
			return mapError(err, "failed to claim outbox events")
		}
		if len(events) == 0 {
			return nil
		}
		return fn(ctx, events)
	})
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_events
		SET status = $1, error_message = NULL, processed_at = NOW(), updated_at = NOW()
		WHERE id = $2
	`
	res, err := r.q(ctx).ExecContext(ctx, query, model.OutboxStatusProcessed, id)
	if err != nil {
		return mapError(err, "failed to mark outbox event processed")
	}
	return requireAffected(res, "failed to mark outbox event processed")
}

// MarkFailed records a failed attempt. The event stays pending until it has failed
// maxRetries times.
func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, maxRetries int) error {
	query := `
		UPDATE outbox_events
		SET retry_count = retry_count + 1,
			error_message = $1,
			status = CASE WHEN retry_count + 1 >= $2 THEN $3 ELSE status END,
			updated_at = NOW()
		WHERE id = $4
	`
	res, err := r.q(ctx).ExecContext(ctx, query, reason, maxRetries, model.OutboxStatusFailed, id)
	if err != nil {
		return mapError(err, "failed to mark outbox event failed")
	}
	return requireAffected(res, "failed to mark outbox event failed")
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = $1
		AND processed_at < $2
	`
	res, err := r.q(ctx).ExecContext(ctx, query, model.OutboxStatusProcessed, before)
	if err != nil {
		return 0, mapError(err, "failed to delete processed events")
	}
	return res.RowsAffected()
}
