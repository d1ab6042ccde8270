package referral

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/service/audit"
	"github.com/jwalitptl/referral-api/internal/service/event"
	"github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/validator"
)

// CreatedPayload is published on referral.created.
type CreatedPayload struct {
	ReferralID         int64   `json:"referralId"`
	PatientID          string  `json:"patientId"`
	HealthFacilityName string  `json:"healthFacilityName"`
	ReadingID          *string `json:"readingId,omitempty"`
	UserID             *int64  `json:"userId,omitempty"`
}

type Service struct {
	tx           repository.Transactor
	repo         repository.ReferralRepository
	patientRepo  repository.PatientRepository
	readingRepo  repository.ReadingRepository
	facilityRepo repository.FacilityRepository
	emitter      event.Emitter
	validator    validator.Validator
	auditor      *audit.Service
}

func NewService(
	tx repository.Transactor,
	repo repository.ReferralRepository,
	patientRepo repository.PatientRepository,
	readingRepo repository.ReadingRepository,
	facilityRepo repository.FacilityRepository,
	emitter event.Emitter,
	v validator.Validator,
	auditor *audit.Service,
) *Service {
	return &Service{
		tx:           tx,
		repo:         repo,
		patientRepo:  patientRepo,
		readingRepo:  readingRepo,
		facilityRepo: facilityRepo,
		emitter:      emitter,
		validator:    v,
		auditor:      auditor,
	}
}

func (s *Service) Create(ctx context.Context, actor *model.Identity, req *model.CreateReferralRequest) (*model.Referral, error) {
	var referral *model.Referral
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.CreateInTx(ctx, actor, req)
		referral = r
		return err
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, audit.Entry{
		ActorID:    audit.Actor(actor),
		Action:     model.AuditActionCreate,
		EntityType: model.AuditEntityReferral,
		EntityID:   strconv.FormatInt(referral.ID, 10),
	})
	return referral, nil
}

// CreateInTx stores a referral and its outbox event. ctx must carry a transaction.
func (s *Service) CreateInTx(ctx context.Context, actor *model.Identity, req *model.CreateReferralRequest) (*model.Referral, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, errors.Unauthorized("", nil)
	}

	if _, err := s.patientRepo.Get(ctx, req.PatientID); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, invalid("patientId", fmt.Sprintf("Patient %s does not exist", req.PatientID))
		}
		return nil, errors.Internal(err)
	}

	ok, err := s.facilityRepo.FacilityExists(ctx, req.ReferralHealthFacilityName)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if !ok {
		return nil, invalid("referralHealthFacilityName",
			fmt.Sprintf("Health facility %s does not exist", req.ReferralHealthFacilityName))
	}

	if req.ReadingID != nil {
		reading, err := s.readingRepo.Get(ctx, *req.ReadingID)
		if err != nil {
			if stderrors.Is(err, repository.ErrNotFound) {
				return nil, invalid("readingId", fmt.Sprintf("Reading %s does not exist", *req.ReadingID))
			}
			return nil, errors.Internal(err)
		}
		if reading.PatientID != req.PatientID {
			return nil, invalid("readingId", "Reading belongs to a different patient")
		}
	}

	referral := req.NewReferral(actor.UserID)
	if err := s.repo.Create(ctx, referral); err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) {
			return nil, errors.Conflict("Reading already has a referral", err)
		}
		return nil, repository.ToAppError(err, "referral")
	}

	err = s.emitter.Emit(ctx, model.EventReferralCreated, CreatedPayload{
		ReferralID:         referral.ID,
		PatientID:          referral.PatientID,
		HealthFacilityName: referral.ReferralHealthFacilityName,
		ReadingID:          referral.ReadingID,
		UserID:             referral.UserID,
	})
	if err != nil {
		return nil, errors.Internal(err)
	}
	return referral, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*model.Referral, error) {
	referral, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, repository.ToAppError(err, "referral")
	}
	return referral, nil
}

func (s *Service) List(ctx context.Context, filter *model.ReferralFilter) ([]*model.Referral, error) {
	referrals, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return referrals, nil
}

// Mapped returns referrals keyed by the reading they were raised for. Referrals not
// tied to a reading are left out.
func (s *Service) Mapped(ctx context.Context, filter *model.ReferralFilter) (map[string]*model.Referral, error) {
	referrals, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	byReading := make(map[string]*model.Referral, len(referrals))
	for _, r := range referrals {
		if r.ReadingID != nil {
			byReading[*r.ReadingID] = r
		}
	}
	return byReading, nil
}

func invalid(field, msg string) error {
	return errors.Validation(msg, errors.FieldError{Field: field, Rule: "exists", Message: msg})
}
