package auth

import (
	"context"
	stderrors "errors"
	"strconv"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/service/audit"
	"github.com/jwalitptl/referral-api/internal/service/rbac"
	"github.com/jwalitptl/referral-api/pkg/auth"
	"github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/security"
	"github.com/jwalitptl/referral-api/pkg/validator"
)

const msgInvalidCredentials = "Invalid email or password"

type Service struct {
	userRepo  repository.UserRepository
	policy    *rbac.Policy
	hasher    security.PasswordHasher
	jwtSvc    auth.JWTService
	validator validator.Validator
	auditor   *audit.Service
}

func NewService(userRepo repository.UserRepository, policy *rbac.Policy, hasher security.PasswordHasher,
	jwtSvc auth.JWTService, v validator.Validator, auditor *audit.Service) *Service {
	return &Service{
		userRepo:  userRepo,
		policy:    policy,
		hasher:    hasher,
		jwtSvc:    jwtSvc,
		validator: v,
		auditor:   auditor,
	}
}

// Authenticate checks the credentials and issues an access and a refresh token.
// An unknown email and a wrong password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, req *model.LoginRequest) (*model.AuthView, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.Unauthorized(msgInvalidCredentials, nil)
		}
		return nil, errors.Internal(err)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, errors.Unauthorized(msgInvalidCredentials, nil)
	}

	identity, err := s.Identity(ctx, user)
	if err != nil {
		return nil, err
	}

	view, err := s.issue(identity, "")
	if err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, audit.Entry{
		ActorID:    audit.Actor(identity),
		Action:     model.AuditActionLogin,
		EntityType: model.AuditEntityUser,
		EntityID:   strconv.FormatInt(user.ID, 10),
	})
	return view, nil
}

// Refresh issues a new access token for the holder of a valid refresh token. The
// identity is rebuilt from storage so role and supervision changes take effect.
func (s *Service) Refresh(ctx context.Context, req *model.RefreshTokenRequest) (*model.AuthView, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	claims, err := s.jwtSvc.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, errors.Unauthorized("invalid refresh token", err)
	}

	user, err := s.userRepo.Get(ctx, claims.Identity.UserID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.Unauthorized("invalid refresh token", err)
		}
		return nil, errors.Internal(err)
	}

	identity, err := s.Identity(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.issue(identity, req.RefreshToken)
}

// Identity builds the claims asserted about user. vhtList is only populated for a CHO.
func (s *Service) Identity(ctx context.Context, user *model.User) (*model.Identity, error) {
	vhts, err := s.policy.SupervisedVHTIDs(ctx, user)
	if err != nil {
		return nil, err
	}

	roles := user.Roles
	if roles == nil {
		roles = []model.RoleName{}
	}
	return &model.Identity{
		UserID:             user.ID,
		Email:              user.Email,
		FirstName:          user.FirstName,
		HealthFacilityName: user.HealthFacilityName,
		Roles:              roles,
		VHTList:            vhts,
		IsLoggedIn:         true,
	}, nil
}

// issue signs a new access token, and a new refresh token unless one is being reused.
func (s *Service) issue(identity *model.Identity, refresh string) (*model.AuthView, error) {
	token, err := s.jwtSvc.GenerateAccessToken(identity)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if refresh == "" {
		refresh, err = s.jwtSvc.GenerateRefreshToken(identity)
		if err != nil {
			return nil, errors.Internal(err)
		}
	}
	return &model.AuthView{
		Identity: *identity,
		Token:    token,
		Refresh:  refresh,
	}, nil
}
