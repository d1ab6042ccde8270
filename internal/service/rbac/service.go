package rbac

import (
	"context"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/pkg/errors"
)

// Policy answers the role-based access questions of the user endpoints.
type Policy struct {
	users repository.UserRepository
}

func NewPolicy(users repository.UserRepository) *Policy {
	return &Policy{users: users}
}

// CanDeleteUser reports whether actor may delete the user with targetID. Only ADMIN
// may; the target does not matter, an admin may delete themselves.
func (p *Policy) CanDeleteUser(actor *model.Identity, targetID int64) bool {
	return actor.HasRole(model.RoleAdmin)
}

func (p *Policy) RequireDeleteUser(actor *model.Identity, targetID int64) error {
	if !p.CanDeleteUser(actor, targetID) {
		return errors.Forbidden("Only admins can delete users")
	}
	return nil
}

// SupervisedVHTs returns the VHTs a CHO supervises. Supervised users that no longer
// hold the VHT role are left out.
func (p *Policy) SupervisedVHTs(ctx context.Context, user *model.User) ([]*model.User, error) {
	if !user.HasRole(model.RoleCHO) {
		return nil, errors.Forbidden("user is not a CHO")
	}

	supervised, err := p.users.ListSupervised(ctx, user.ID)
	if err != nil {
		return nil, repository.ToAppError(err, "supervised users")
	}

	vhts := make([]*model.User, 0, len(supervised))
	for _, u := range supervised {
		if u.HasRole(model.RoleVHT) {
			vhts = append(vhts, u)
		}
	}
	return vhts, nil
}

// SupervisedVHTIDs is SupervisedVHTs reduced to ids; non-CHO users get an empty list.
func (p *Policy) SupervisedVHTIDs(ctx context.Context, user *model.User) ([]int64, error) {
	ids := []int64{}
	if !user.HasRole(model.RoleCHO) {
		return ids, nil
	}
	vhts, err := p.SupervisedVHTs(ctx, user)
	if err != nil {
		return nil, err
	}
	for _, v := range vhts {
		ids = append(ids, v.ID)
	}
	return ids, nil
}
