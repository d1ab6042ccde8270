package role

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/pkg/errors"
)

// Service resolves roles by name or id. The role table is seeded once and never
// changes at runtime, so lookups are cached.
type Service struct {
	repo  repository.RoleRepository
	cache *cache.Cache
}

func NewService(repo repository.RoleRepository, ttl time.Duration) *Service {
	return &Service{
		repo:  repo,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (s *Service) ByName(ctx context.Context, name model.RoleName) (*model.Role, error) {
	key := "name:" + string(name)
	if v, ok := s.cache.Get(key); ok {
		return v.(*model.Role), nil
	}

	role, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, repository.ToAppError(err, fmt.Sprintf("role %s", name))
	}
	s.store(role)
	return role, nil
}

func (s *Service) ByID(ctx context.Context, id int64) (*model.Role, error) {
	key := "id:" + strconv.FormatInt(id, 10)
	if v, ok := s.cache.Get(key); ok {
		return v.(*model.Role), nil
	}

	role, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, repository.ToAppError(err, fmt.Sprintf("role %d", id))
	}
	s.store(role)
	return role, nil
}

func (s *Service) List(ctx context.Context) ([]*model.Role, error) {
	roles, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Internal(err)
	}
	for _, r := range roles {
		s.store(r)
	}
	return roles, nil
}

// AssignToUser grants the role to the user.
func (s *Service) AssignToUser(ctx context.Context, userID int64, role *model.Role) error {
	if err := s.repo.AssignToUser(ctx, userID, role.ID); err != nil {
		return repository.ToAppError(err, "user role")
	}
	return nil
}

func (s *Service) store(role *model.Role) {
	s.cache.SetDefault("name:"+string(role.Name), role)
	s.cache.SetDefault("id:"+strconv.FormatInt(role.ID, 10), role)
}
