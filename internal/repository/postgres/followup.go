package postgres

import (
	"context"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
)

type followUpRepository struct {
	BaseRepository
}

func NewFollowUpRepository(base BaseRepository) repository.FollowUpRepository {
	return &followUpRepository{base}
}

func (r *followUpRepository) Create(ctx context.Context, followUp *model.FollowUp) error {
	query := `
		INSERT INTO followups (
			follow_up_action, diagnosis, treatment, date_assessed, healthcare_worker_id
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.q(ctx).QueryRowxContext(ctx, query,
		followUp.FollowUpAction,
		followUp.Diagnosis,
		followUp.Treatment,
		followUp.DateAssessed,
		followUp.HealthcareWorkerID,
	).Scan(&followUp.ID)
	return mapError(err, "failed to create follow-up")
}

func (r *followUpRepository) Get(ctx context.Context, id int64) (*model.FollowUp, error) {
	var followUp model.FollowUp
	if err := r.q(ctx).GetContext(ctx, &followUp, `SELECT * FROM followups WHERE id = $1`, id); err != nil {
		return nil, mapError(err, "failed to get follow-up")
	}
	return &followUp, nil
}

func (r *followUpRepository) Update(ctx context.Context, followUp *model.FollowUp) error {
	query := `
		UPDATE followups SET
			follow_up_action = :follow_up_action,
			diagnosis = :diagnosis,
			treatment = :treatment,
			date_assessed = :date_assessed,
			healthcare_worker_id = :healthcare_worker_id
		WHERE id = :id
	`
	res, err := r.q(ctx).NamedExecContext(ctx, query, followUp)
	if err != nil {
		return mapError(err, "failed to update follow-up")
	}
	return requireAffected(res, "failed to update follow-up")
}
