package reading

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/service/audit"
	"github.com/jwalitptl/referral-api/internal/service/event"
	"github.com/jwalitptl/referral-api/internal/service/patient"
	"github.com/jwalitptl/referral-api/internal/service/referral"
	"github.com/jwalitptl/referral-api/internal/triage"
	"github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/metrics"
	"github.com/jwalitptl/referral-api/pkg/validator"
)

// CreatedPayload is published on reading.created and reading.critical.
type CreatedPayload struct {
	ReadingID    string             `json:"readingId"`
	PatientID    string             `json:"patientId"`
	UserID       *int64             `json:"userId,omitempty"`
	TrafficLight model.TrafficLight `json:"trafficLightStatus"`
}

type Service struct {
	tx          repository.Transactor
	repo        repository.ReadingRepository
	patientRepo repository.PatientRepository
	patients    *patient.Service
	referrals   *referral.Service
	emitter     event.Emitter
	validator   validator.Validator
	metrics     *metrics.Metrics
	auditor     *audit.Service
}

func NewService(
	tx repository.Transactor,
	repo repository.ReadingRepository,
	patientRepo repository.PatientRepository,
	patients *patient.Service,
	referrals *referral.Service,
	emitter event.Emitter,
	v validator.Validator,
	m *metrics.Metrics,
	auditor *audit.Service,
) *Service {
	return &Service{
		tx:          tx,
		repo:        repo,
		patientRepo: patientRepo,
		patients:    patients,
		referrals:   referrals,
		emitter:     emitter,
		validator:   v,
		metrics:     m,
		auditor:     auditor,
	}
}

// Create stores a reading for an existing patient. The traffic light is computed here
// and never taken from the request.
func (s *Service) Create(ctx context.Context, actor *model.Identity, req *model.CreateReadingRequest) (*model.Reading, error) {
	var reading *model.Reading
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.patientRepo.Get(ctx, req.PatientID); err != nil {
			if stderrors.Is(err, repository.ErrNotFound) {
				msg := fmt.Sprintf("Patient %s does not exist", req.PatientID)
				return errors.Validation(msg, errors.FieldError{Field: "patientId", Rule: "exists", Message: msg})
			}
			return errors.Internal(err)
		}
		r, err := s.createInTx(ctx, actor, req)
		reading = r
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveReading(reading.TrafficLightStatus)
	s.auditor.Log(ctx, audit.Entry{
		ActorID:    audit.Actor(actor),
		Action:     model.AuditActionCreate,
		EntityType: model.AuditEntityReading,
		EntityID:   reading.ReadingID,
		Metadata:   map[string]interface{}{"trafficLightStatus": string(reading.TrafficLightStatus)},
	})
	return reading, nil
}

// CreateWithPatient registers a new patient together with their first reading and,
// optionally, a referral raised from that reading. All three commit or none do.
func (s *Service) CreateWithPatient(ctx context.Context, actor *model.Identity, req *model.PatientReadingRequest) (*model.PatientReadingResult, error) {
	if req.Reading.PatientID == "" {
		req.Reading.PatientID = req.Patient.PatientID
	}
	if req.Reading.PatientID != req.Patient.PatientID {
		msg := "reading.patientId must match patient.patientId"
		return nil, errors.Validation(msg, errors.FieldError{Field: "patientId", Rule: "eqfield", Message: msg})
	}

	result := &model.PatientReadingResult{}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.patients.CreateInTx(ctx, &req.Patient)
		if err != nil {
			return err
		}
		result.Patient = p

		r, err := s.createInTx(ctx, actor, &req.Reading)
		if err != nil {
			return err
		}
		result.Reading = r

		if req.Referral == nil {
			return nil
		}
		if req.Referral.PatientID == "" {
			req.Referral.PatientID = p.PatientID
		}
		if req.Referral.ReadingID == nil {
			req.Referral.ReadingID = &r.ReadingID
		}
		ref, err := s.referrals.CreateInTx(ctx, actor, req.Referral)
		if err != nil {
			return err
		}
		result.Referral = ref
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveReading(result.Reading.TrafficLightStatus)
	actorID := audit.Actor(actor)
	s.auditor.Log(ctx, audit.Entry{
		ActorID: actorID, Action: model.AuditActionCreate,
		EntityType: model.AuditEntityPatient, EntityID: result.Patient.PatientID,
	})
	s.auditor.Log(ctx, audit.Entry{
		ActorID: actorID, Action: model.AuditActionCreate,
		EntityType: model.AuditEntityReading, EntityID: result.Reading.ReadingID,
		Metadata: map[string]interface{}{"trafficLightStatus": string(result.Reading.TrafficLightStatus)},
	})
	if result.Referral != nil {
		s.auditor.Log(ctx, audit.Entry{
			ActorID: actorID, Action: model.AuditActionCreate,
			EntityType: model.AuditEntityReferral, EntityID: fmt.Sprint(result.Referral.ID),
		})
	}
	return result, nil
}

func (s *Service) createInTx(ctx context.Context, actor *model.Identity, req *model.CreateReadingRequest) (*model.Reading, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	status, err := triage.Classify(req.BPSystolic, req.BPDiastolic, req.HeartRateBPM)
	if err != nil {
		return nil, errors.Validation(err.Error(), errors.FieldError{
			Field: "bpSystolic", Rule: "gt", Message: err.Error(),
		})
	}

	reading := req.NewReading()
	if reading.ReadingID == "" {
		reading.ReadingID = uuid.NewString()
	}
	reading.TrafficLightStatus = status
	if actor != nil {
		id := actor.UserID
		reading.UserID = &id
	}

	if err := s.repo.Create(ctx, reading); err != nil {
		return nil, repository.ToAppError(err, "reading")
	}

	payload := CreatedPayload{
		ReadingID:    reading.ReadingID,
		PatientID:    reading.PatientID,
		UserID:       reading.UserID,
		TrafficLight: status,
	}
	if err := s.emitter.Emit(ctx, model.EventReadingCreated, payload); err != nil {
		return nil, errors.Internal(err)
	}
	if status.IsRed() {
		if err := s.emitter.Emit(ctx, model.EventReadingCritical, payload); err != nil {
			return nil, errors.Internal(err)
		}
	}
	return reading, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Reading, error) {
	reading, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, repository.ToAppError(err, "reading")
	}
	return reading, nil
}

// ListByPatient returns the patient's readings; an unknown patient is NotFound.
func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]*model.Reading, error) {
	if _, err := s.patientRepo.Get(ctx, patientID); err != nil {
		return nil, repository.ToAppError(err, "patient")
	}
	readings, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return readings, nil
}
