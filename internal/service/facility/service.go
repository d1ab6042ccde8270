package facility

import (
	"context"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/validator"
)

// Service manages the reference data users and referrals point at.
type Service struct {
	repo      repository.FacilityRepository
	validator validator.Validator
}

func NewService(repo repository.FacilityRepository, v validator.Validator) *Service {
	return &Service{repo: repo, validator: v}
}

func (s *Service) CreateFacility(ctx context.Context, f *model.HealthFacility) error {
	if err := s.validator.Validate(f); err != nil {
		return err
	}
	if err := s.repo.CreateFacility(ctx, f); err != nil {
		return repository.ToAppError(err, "health facility")
	}
	return nil
}

func (s *Service) ListFacilities(ctx context.Context) ([]*model.HealthFacility, error) {
	facilities, err := s.repo.ListFacilities(ctx)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return facilities, nil
}

func (s *Service) CreateVillage(ctx context.Context, v *model.Village) error {
	if err := s.validator.Validate(v); err != nil {
		return err
	}
	if err := s.repo.CreateVillage(ctx, v); err != nil {
		return repository.ToAppError(err, "village")
	}
	return nil
}

func (s *Service) ListVillages(ctx context.Context) ([]*model.Village, error) {
	villages, err := s.repo.ListVillages(ctx)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return villages, nil
}
