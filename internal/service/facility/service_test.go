package facility

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository/memory"
	"github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/validator"
)

func TestFacilities(t *testing.T) {
	svc := NewService(memory.NewStore().Facilities(), validator.New())
	ctx := context.Background()

	require.NoError(t, svc.CreateFacility(ctx, &model.HealthFacility{HealthFacilityName: "H1000"}))
	require.NoError(t, svc.CreateFacility(ctx, &model.HealthFacility{HealthFacilityName: "H0000"}))

	err := svc.CreateFacility(ctx, &model.HealthFacility{HealthFacilityName: "H0000"})
	assert.True(t, errors.Is(err, errors.ErrConflict))

	err = svc.CreateFacility(ctx, &model.HealthFacility{})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	facilities, err := svc.ListFacilities(ctx)
	require.NoError(t, err)
	require.Len(t, facilities, 2)
	assert.Equal(t, "H0000", facilities[0].HealthFacilityName)
}

func TestVillages(t *testing.T) {
	svc := NewService(memory.NewStore().Facilities(), validator.New())
	ctx := context.Background()
	zone := "Z1"

	require.NoError(t, svc.CreateVillage(ctx, &model.Village{VillageNumber: "1001", ZoneNumber: &zone}))
	err := svc.CreateVillage(ctx, &model.Village{VillageNumber: "1001"})
	assert.True(t, errors.Is(err, errors.ErrConflict))

	villages, err := svc.ListVillages(ctx)
	require.NoError(t, err)
	require.Len(t, villages, 1)
	assert.Equal(t, "Z1", *villages[0].ZoneNumber)
}
