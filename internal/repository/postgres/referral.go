package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
)

type referralRepository struct {
	BaseRepository
}

func NewReferralRepository(base BaseRepository) repository.ReferralRepository {
	return &referralRepository{base}
}

func (r *referralRepository) Create(ctx context.Context, referral *model.Referral) error {
	query := `
		INSERT INTO referrals (
			date_referred, comment, action_taken, user_id, patient_id,
			referral_health_facility_name, reading_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := r.q(ctx).QueryRowxContext(ctx, query,
		referral.DateReferred,
		referral.Comment,
		referral.ActionTaken,
		referral.UserID,
		referral.PatientID,
		referral.ReferralHealthFacilityName,
		referral.ReadingID,
	).Scan(&referral.ID)
	return mapError(err, "failed to create referral")
}

func (r *referralRepository) Get(ctx context.Context, id int64) (*model.Referral, error) {
	var referral model.Referral
	if err := r.q(ctx).GetContext(ctx, &referral, `SELECT * FROM referrals WHERE id = $1`, id); err != nil {
		return nil, mapError(err, "failed to get referral")
	}
	if err := r.attachFollowUps(ctx, []*model.Referral{&referral}); err != nil {
		return nil, err
	}
	return &referral, nil
}

func (r *referralRepository) List(ctx context.Context, filter *model.ReferralFilter) ([]*model.Referral, error) {
	query := `SELECT * FROM referrals WHERE 1=1`
	var args []interface{}

	if filter != nil {
		if filter.HealthFacilityName != "" {
			args = append(args, filter.HealthFacilityName)
			query += fmt.Sprintf(" AND referral_health_facility_name = $%d", len(args))
		}
		if filter.PatientID != "" {
			args = append(args, filter.PatientID)
			query += fmt.Sprintf(" AND patient_id = $%d", len(args))
		}
	}
	query += " ORDER BY id"

	referrals := []*model.Referral{}
	if err := r.q(ctx).SelectContext(ctx, &referrals, query, args...); err != nil {
		return nil, mapError(err, "failed to list referrals")
	}
	if err := r.attachFollowUps(ctx, referrals); err != nil {
		return nil, err
	}
	return referrals, nil
}

// SetFollowUp links a follow-up to a referral that has none. A referral that is
// already linked yields ErrDuplicate, even when the link was committed concurrently.
func (r *referralRepository) SetFollowUp(ctx context.Context, referralID, followUpID int64) error {
	res, err := r.q(ctx).ExecContext(ctx,
		`UPDATE referrals SET follow_up_id = $1 WHERE id = $2 AND follow_up_id IS NULL`, followUpID, referralID)
	if err != nil {
		return mapError(err, "failed to set referral follow-up")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set referral follow-up: failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := r.q(ctx).GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM referrals WHERE id = $1)`, referralID); err != nil {
		return mapError(err, "failed to set referral follow-up")
	}
	if exists {
		return fmt.Errorf("failed to set referral follow-up: %w: referral %d already has a follow-up",
			repository.ErrDuplicate, referralID)
	}
	return fmt.Errorf("failed to set referral follow-up: %w", repository.ErrNotFound)
}

// attachFollowUps loads the follow-ups of the given referrals in one query.
func (r *referralRepository) attachFollowUps(ctx context.Context, referrals []*model.Referral) error {
	byID := make(map[int64][]*model.Referral)
	ids := make([]int64, 0, len(referrals))
	for _, ref := range referrals {
		if ref.FollowUpID == nil {
			continue
		}
		if _, seen := byID[*ref.FollowUpID]; !seen {
			ids = append(ids, *ref.FollowUpID)
		}
		byID[*ref.FollowUpID] = append(byID[*ref.FollowUpID], ref)
	}
	if len(ids) == 0 {
		return nil
	}

	var followUps []*model.FollowUp
	if err := r.q(ctx).SelectContext(ctx, &followUps,
		`SELECT * FROM followups WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return mapError(err, "failed to load follow-ups")
	}
	for _, f := range followUps {
		for _, ref := range byID[f.ID] {
			ref.FollowUp = f
		}
	}
	return nil
}
