package postgres

import (
	"context"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
)

type facilityRepository struct {
	BaseRepository
}

func NewFacilityRepository(base BaseRepository) repository.FacilityRepository {
	return &facilityRepository{base}
}

func (r *facilityRepository) CreateFacility(ctx context.Context, facility *model.HealthFacility) error {
	_, err := r.q(ctx).ExecContext(ctx,
		`INSERT INTO health_facilities (health_facility_name) VALUES ($1)`, facility.HealthFacilityName)
	return mapError(err, "failed to create health facility")
}

func (r *facilityRepository) ListFacilities(ctx context.Context) ([]*model.HealthFacility, error) {
	facilities := []*model.HealthFacility{}
	if err := r.q(ctx).SelectContext(ctx, &facilities,
		`SELECT health_facility_name FROM health_facilities ORDER BY health_facility_name`); err != nil {
		return nil, mapError(err, "failed to list health facilities")
	}
	return facilities, nil
}

func (r *facilityRepository) FacilityExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.q(ctx).GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM health_facilities WHERE health_facility_name = $1)`, name)
	return exists, mapError(err, "failed to check health facility")
}

func (r *facilityRepository) CreateVillage(ctx context.Context, village *model.Village) error {
	_, err := r.q(ctx).ExecContext(ctx,
		`INSERT INTO villages (village_number, zone_number) VALUES ($1, $2)`,
		village.VillageNumber, village.ZoneNumber)
	return mapError(err, "failed to create village")
}

func (r *facilityRepository) ListVillages(ctx context.Context) ([]*model.Village, error) {
	villages := []*model.Village{}
	if err := r.q(ctx).SelectContext(ctx, &villages,
		`SELECT village_number, zone_number FROM villages ORDER BY village_number`); err != nil {
		return nil, mapError(err, "failed to list villages")
	}
	return villages, nil
}
