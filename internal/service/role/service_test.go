package role

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/repository/memory"
	"github.com/jwalitptl/referral-api/pkg/errors"
)

type countingRepo struct {
	repository.RoleRepository
	byName int
}

func (c *countingRepo) GetByName(ctx context.Context, name model.RoleName) (*model.Role, error) {
	c.byName++
	return c.RoleRepository.GetByName(ctx, name)
}

func TestService_ByNameIsCached(t *testing.T) {
	repo := &countingRepo{RoleRepository: memory.NewStore().Roles()}
	svc := NewService(repo, time.Minute)
	ctx := context.Background()

	first, err := svc.ByName(ctx, model.RoleCHO)
	require.NoError(t, err)
	second, err := svc.ByName(ctx, model.RoleCHO)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.byName)

	// the name lookup also warms the id key
	byID, err := svc.ByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleCHO, byID.Name)
}

func TestService_UnknownRole(t *testing.T) {
	svc := NewService(memory.NewStore().Roles(), time.Minute)

	_, err := svc.ByID(context.Background(), 99)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestService_List(t *testing.T) {
	svc := NewService(memory.NewStore().Roles(), time.Minute)

	roles, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, roles, 4)
	assert.Equal(t, model.RoleVHT, roles[0].Name)
}
