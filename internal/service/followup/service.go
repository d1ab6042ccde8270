package followup

import (
	"context"
	stderrors "errors"
	"strconv"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/service/audit"
	"github.com/jwalitptl/referral-api/internal/service/event"
	"github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/validator"
)

const msgAlreadyLinked = "Referral already has a follow-up"

type CreatedPayload struct {
	FollowUpID         int64 `json:"followUpId"`
	ReferralID         int64 `json:"referralId"`
	HealthcareWorkerID int64 `json:"healthcareWorkerId"`
}

type Service struct {
	tx           repository.Transactor
	repo         repository.FollowUpRepository
	referralRepo repository.ReferralRepository
	emitter      event.Emitter
	validator    validator.Validator
	auditor      *audit.Service
}

func NewService(tx repository.Transactor, repo repository.FollowUpRepository, referralRepo repository.ReferralRepository,
	emitter event.Emitter, v validator.Validator, auditor *audit.Service) *Service {
	return &Service{
		tx:           tx,
		repo:         repo,
		referralRepo: referralRepo,
		emitter:      emitter,
		validator:    v,
		auditor:      auditor,
	}
}

// Create records the assessment of a referral by the acting health worker. A referral
// has at most one follow-up.
func (s *Service) Create(ctx context.Context, actor *model.Identity, referralID int64, req *model.FollowUpRequest) (*model.FollowUp, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, errors.Unauthorized("", nil)
	}

	followUp := &model.FollowUp{
		FollowUpAction:     req.FollowUpAction,
		Diagnosis:          req.Diagnosis,
		Treatment:          req.Treatment,
		DateAssessed:       req.DateAssessed,
		HealthcareWorkerID: actor.UserID,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		referral, err := s.referralRepo.Get(ctx, referralID)
		if err != nil {
			return repository.ToAppError(err, "referral")
		}
		if referral.FollowUpID != nil {
			return errors.Conflict(msgAlreadyLinked, nil)
		}

		if err := s.repo.Create(ctx, followUp); err != nil {
			if stderrors.Is(err, repository.ErrForeignKey) {
				return errors.Unauthorized("health worker no longer exists", err)
			}
			return errors.Internal(err)
		}
		if err := s.referralRepo.SetFollowUp(ctx, referralID, followUp.ID); err != nil {
			if stderrors.Is(err, repository.ErrDuplicate) {
				return errors.Conflict(msgAlreadyLinked, err)
			}
			return repository.ToAppError(err, "referral")
		}
		if err := s.emitter.Emit(ctx, model.EventFollowUpCreated, CreatedPayload{
			FollowUpID:         followUp.ID,
			ReferralID:         referralID,
			HealthcareWorkerID: followUp.HealthcareWorkerID,
		}); err != nil {
			return errors.Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, audit.Entry{
		ActorID:    audit.Actor(actor),
		Action:     model.AuditActionCreate,
		EntityType: model.AuditEntityFollowUp,
		EntityID:   strconv.FormatInt(followUp.ID, 10),
		Metadata:   map[string]interface{}{"referralId": referralID},
	})
	return followUp, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*model.FollowUp, error) {
	followUp, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, repository.ToAppError(err, "follow-up")
	}
	return followUp, nil
}

// Update replaces the assessment fields. The health worker who recorded it is kept.
func (s *Service) Update(ctx context.Context, actor *model.Identity, id int64, req *model.FollowUpRequest) (*model.FollowUp, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var followUp *model.FollowUp
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		f, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		f.FollowUpAction = req.FollowUpAction
		f.Diagnosis = req.Diagnosis
		f.Treatment = req.Treatment
		f.DateAssessed = req.DateAssessed
		if err := s.repo.Update(ctx, f); err != nil {
			return repository.ToAppError(err, "follow-up")
		}
		followUp = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, audit.Entry{
		ActorID:    audit.Actor(actor),
		Action:     model.AuditActionUpdate,
		EntityType: model.AuditEntityFollowUp,
		EntityID:   strconv.FormatInt(id, 10),
	})
	return followUp, nil
}
