package patient

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/service/audit"
	"github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/validator"
)

type Service struct {
	tx          repository.Transactor
	repo        repository.PatientRepository
	readingRepo repository.ReadingRepository
	validator   validator.Validator
	auditor     *audit.Service
}

func NewService(tx repository.Transactor, repo repository.PatientRepository, readingRepo repository.ReadingRepository,
	v validator.Validator, auditor *audit.Service) *Service {
	return &Service{
		tx:          tx,
		repo:        repo,
		readingRepo: readingRepo,
		validator:   v,
		auditor:     auditor,
	}
}

func (s *Service) Create(ctx context.Context, actor *model.Identity, req *model.CreatePatientRequest) (*model.Patient, error) {
	patient, err := s.CreateInTx(ctx, req)
	if err != nil {
		return nil, err
	}
	s.auditor.Log(ctx, audit.Entry{
		ActorID:    audit.Actor(actor),
		Action:     model.AuditActionCreate,
		EntityType: model.AuditEntityPatient,
		EntityID:   patient.PatientID,
	})
	return patient, nil
}

// CreateInTx validates and stores a patient using whatever transaction ctx carries.
// It writes no audit entry; callers composing a larger write log their own.
func (s *Service) CreateInTx(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	patient := req.ToPatient()
	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, repository.ToAppError(err, "patient")
	}
	return patient, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, repository.ToAppError(err, "patient")
	}
	return patient, nil
}

// GetWithReadings returns the patient and every reading taken of them.
func (s *Service) GetWithReadings(ctx context.Context, id string) (*model.PatientWithReadings, error) {
	patient, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	readings, err := s.readingRepo.ListByPatient(ctx, id)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return &model.PatientWithReadings{Patient: patient, Readings: readings}, nil
}

func (s *Service) List(ctx context.Context) ([]*model.Patient, error) {
	patients, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return patients, nil
}

// Update applies a partial edit. The patient id itself cannot be changed.
func (s *Service) Update(ctx context.Context, actor *model.Identity, id string, raw map[string]interface{}) (*model.Patient, error) {
	fields, err := ParsePatch(raw)
	if err != nil {
		return nil, err
	}

	var patient *model.Patient
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if len(fields) > 0 {
			if err := s.repo.Update(ctx, id, fields); err != nil {
				return repository.ToAppError(err, "patient")
			}
		}
		p, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		patient = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	s.auditor.Log(ctx, audit.Entry{
		ActorID:    audit.Actor(actor),
		Action:     model.AuditActionUpdate,
		EntityType: model.AuditEntityPatient,
		EntityID:   id,
		Metadata:   map[string]interface{}{"fields": cols},
	})
	return patient, nil
}

// ParsePatch converts a raw edit body into column values, rejecting unknown keys and
// values of the wrong type.
func ParsePatch(raw map[string]interface{}) (map[string]interface{}, error) {
	fields := map[string]interface{}{}
	var fieldErrs []errors.FieldError
	bad := func(key, rule, msg string) {
		fieldErrs = append(fieldErrs, errors.FieldError{Field: key, Rule: rule, Message: msg})
	}

	for key, value := range raw {
		col, ok := model.PatientColumns[key]
		if !ok {
			bad(key, "unknown", fmt.Sprintf("%s is not an editable field", key))
			continue
		}

		switch key {
		case "patientAge":
			age, ok := toInt(value)
			if !ok || age < 0 {
				bad(key, "min", "patientAge must be a non-negative integer")
				continue
			}
			fields[col] = age
		case "patientSex":
			str, _ := value.(string)
			sex, err := model.ParseSex(str)
			if err != nil {
				bad(key, "oneof", "patientSex must be one of MALE FEMALE OTHER")
				continue
			}
			fields[col] = string(sex)
		case "isPregnant":
			switch v := value.(type) {
			case nil:
				fields[col] = nil
			case bool:
				fields[col] = v
			default:
				bad(key, "bool", "isPregnant must be a boolean")
			}
		default:
			switch v := value.(type) {
			case nil:
				fields[col] = nil
			case string:
				fields[col] = v
			default:
				bad(key, "string", fmt.Sprintf("%s must be a string", key))
			}
		}
	}

	if len(fieldErrs) > 0 {
		sort.Slice(fieldErrs, func(i, j int) bool { return fieldErrs[i].Field < fieldErrs[j].Field })
		return nil, errors.Validation("Please check the fields", fieldErrs...)
	}
	return fields, nil
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case int:
		return n, true
	}
	return 0, false
}
