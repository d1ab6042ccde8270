package user

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jwalitptl/referral-api/internal/email"
	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/service/audit"
	"github.com/jwalitptl/referral-api/internal/service/rbac"
	"github.com/jwalitptl/referral-api/internal/service/role"
	"github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/security"
	"github.com/jwalitptl/referral-api/pkg/validator"
)

const (
	msgEmailTaken    = "Email has already been taken"
	msgUsernameTaken = "Username has already been taken"
)

type Service struct {
	tx        repository.Transactor
	repo      repository.UserRepository
	roles     *role.Service
	policy    *rbac.Policy
	hasher    security.PasswordHasher
	validator validator.Validator
	emailSvc  email.Service
	auditor   *audit.Service
	logger    *logger.Logger
}

func NewService(
	tx repository.Transactor,
	repo repository.UserRepository,
	roles *role.Service,
	policy *rbac.Policy,
	hasher security.PasswordHasher,
	v validator.Validator,
	emailSvc email.Service,
	auditor *audit.Service,
	log *logger.Logger,
) *Service {
	return &Service{
		tx:        tx,
		repo:      repo,
		roles:     roles,
		policy:    policy,
		hasher:    hasher,
		validator: v,
		emailSvc:  emailSvc,
		auditor:   auditor,
		logger:    log.With("user"),
	}
}

// Register creates a user holding exactly one role; VHT when the request names none.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	roleName := model.RoleVHT
	if req.Role != "" {
		name, err := model.ParseRoleName(req.Role)
		if err != nil {
			return nil, errors.Validation("Please check the fields", errors.FieldError{
				Field: "role", Rule: "oneof", Message: err.Error(),
			})
		}
		roleName = name
	}

	exists, err := s.repo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if exists {
		return nil, errors.Conflict(msgEmailTaken, nil)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		switch {
		case stderrors.Is(err, security.ErrPasswordTooShort):
			return nil, errors.Validation("Please check the fields", errors.FieldError{
				Field: "password", Rule: "min", Message: err.Error(),
			})
		case stderrors.Is(err, security.ErrPasswordTooLong):
			return nil, errors.Validation("Please check the fields", errors.FieldError{
				Field: "password", Rule: "max", Message: err.Error(),
			})
		}
		return nil, errors.Internal(err)
	}

	user := &model.User{
		Username:           optional(req.Username),
		Email:              req.Email,
		FirstName:          optional(req.FirstName),
		PasswordHash:       hash,
		HealthFacilityName: optional(req.HealthFacilityName),
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.roles.ByName(ctx, roleName)
		if err != nil {
			return err
		}
		if err := s.repo.Create(ctx, user); err != nil {
			return s.mapWriteError(err)
		}
		if err := s.roles.AssignToUser(ctx, user.ID, r); err != nil {
			return err
		}
		user.Roles = []model.RoleName{roleName}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, audit.Entry{
		Action:     model.AuditActionCreate,
		EntityType: model.AuditEntityUser,
		EntityID:   strconv.FormatInt(user.ID, 10),
		Metadata:   map[string]interface{}{"role": string(roleName)},
	})

	if err := s.emailSvc.SendWelcome(ctx, user.Email, req.FirstName); err != nil {
		s.logger.Warn("failed to send welcome email", "user_id", user.ID, "error", err.Error())
	}

	return user, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, repository.ToAppError(err, "user")
	}
	return user, nil
}

func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return users, nil
}

// ListVHTIDs returns the ids of every user holding the VHT role.
func (s *Service) ListVHTIDs(ctx context.Context) ([]int64, error) {
	ids, err := s.repo.ListIDsByRole(ctx, model.RoleVHT)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return ids, nil
}

// ParsePatch splits a raw edit body into column updates and relation instructions.
// Keys outside the user allow-list are rejected.
func ParsePatch(raw map[string]interface{}) (*model.UserPatch, error) {
	patch := &model.UserPatch{Fields: map[string]interface{}{}}
	var fieldErrs []errors.FieldError

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := raw[key]
		switch key {
		case model.PatchNewVHTIDs, model.PatchNewRoleIDs:
			ids, err := parseIDs(value)
			if err != nil {
				fieldErrs = append(fieldErrs, errors.FieldError{Field: key, Rule: "ids", Message: err.Error()})
				continue
			}
			if key == model.PatchNewVHTIDs {
				patch.NewVHTIDs = ids
			} else {
				patch.NewRoleIDs = ids
			}
		default:
			col, ok := model.UserColumns[key]
			if !ok {
				fieldErrs = append(fieldErrs, errors.FieldError{
					Field: key, Rule: "unknown", Message: fmt.Sprintf("%s is not an editable field", key),
				})
				continue
			}
			switch v := value.(type) {
			case nil:
				if key == "email" {
					fieldErrs = append(fieldErrs, errors.FieldError{Field: key, Rule: "required", Message: "email is required"})
					continue
				}
				patch.Fields[col] = nil
			case string:
				if limit := model.UserColumnMaxLen[key]; utf8.RuneCountInString(v) > limit {
					fieldErrs = append(fieldErrs, errors.FieldError{
						Field: key, Rule: "max", Message: fmt.Sprintf("%s must be at most %d characters", key, limit),
					})
					continue
				}
				patch.Fields[col] = v
			default:
				fieldErrs = append(fieldErrs, errors.FieldError{
					Field: key, Rule: "string", Message: fmt.Sprintf("%s must be a string", key),
				})
			}
		}
	}

	if len(fieldErrs) > 0 {
		return nil, errors.Validation("Please check the fields", fieldErrs...)
	}
	return patch, nil
}

// Update applies a partial edit to a user. Column updates, new roles and new
// supervision links are written in one transaction; any failure leaves the user as it was.
func (s *Service) Update(ctx context.Context, id int64, raw map[string]interface{}) (*model.User, error) {
	patch, err := ParsePatch(raw)
	if err != nil {
		return nil, err
	}
	if addr, ok := patch.Fields["email"].(string); ok {
		if err := s.validator.Engine().Var(addr, "email"); err != nil {
			return nil, errors.Validation("Please check the fields", errors.FieldError{
				Field: "email", Rule: "email", Message: "email must be a valid email",
			})
		}
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.repo.Get(ctx, id)
		if err != nil {
			return repository.ToAppError(err, "user")
		}

		if len(patch.Fields) > 0 {
			if err := s.repo.Update(ctx, id, patch.Fields); err != nil {
				return s.mapWriteError(err)
			}
		}

		for _, roleID := range patch.NewRoleIDs {
			r, err := s.roles.ByID(ctx, roleID)
			if err != nil {
				if errors.Is(err, errors.ErrNotFound) {
					return errors.Validation(fmt.Sprintf("Role %d does not exist", roleID))
				}
				return err
			}
			if err := s.roles.AssignToUser(ctx, id, r); err != nil {
				return err
			}
			if !user.HasRole(r.Name) {
				user.Roles = append(user.Roles, r.Name)
			}
		}

		if len(patch.NewVHTIDs) > 0 && !user.HasRole(model.RoleCHO) {
			return errors.Validation("Only a CHO can supervise VHTs")
		}
		for _, vhtID := range patch.NewVHTIDs {
			vht, err := s.repo.Get(ctx, vhtID)
			if err != nil {
				if stderrors.Is(err, repository.ErrNotFound) {
					return errors.Validation(fmt.Sprintf("User %d does not exist", vhtID))
				}
				return errors.Internal(err)
			}
			if !vht.HasRole(model.RoleVHT) {
				return errors.Validation(fmt.Sprintf("User %d is not a VHT", vhtID))
			}
			if err := s.repo.AddSupervision(ctx, id, vhtID); err != nil {
				return repository.ToAppError(err, "supervision")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, repository.ToAppError(err, "user")
	}

	s.auditor.Log(ctx, audit.Entry{
		Action:     model.AuditActionUpdate,
		EntityType: model.AuditEntityUser,
		EntityID:   strconv.FormatInt(id, 10),
		Metadata: map[string]interface{}{
			"fields":     sortedKeys(patch.Fields),
			"newRoleIds": patch.NewRoleIDs,
			"newVhtIds":  patch.NewVHTIDs,
		},
	})
	return updated, nil
}

// Delete removes a user on behalf of actor, who must be allowed to by the policy.
func (s *Service) Delete(ctx context.Context, actor *model.Identity, id int64) error {
	if err := s.policy.RequireDeleteUser(actor, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if stderrors.Is(err, repository.ErrForeignKey) {
			return errors.Conflict("User is referenced by follow-ups and cannot be deleted", err)
		}
		return repository.ToAppError(err, "user")
	}

	s.auditor.Log(ctx, audit.Entry{
		ActorID:    audit.Actor(actor),
		Action:     model.AuditActionDelete,
		EntityType: model.AuditEntityUser,
		EntityID:   strconv.FormatInt(id, 10),
	})
	return nil
}

func (s *Service) mapWriteError(err error) error {
	switch {
	case stderrors.Is(err, repository.ErrDuplicate):
		if strings.Contains(err.Error(), "username") {
			return errors.Conflict(msgUsernameTaken, err)
		}
		return errors.Conflict(msgEmailTaken, err)
	case stderrors.Is(err, repository.ErrForeignKey):
		return errors.Validation("Please check the fields", errors.FieldError{
			Field: "healthFacilityName", Rule: "exists", Message: "healthFacilityName does not exist",
		})
	}
	return repository.ToAppError(err, "user")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseIDs accepts a JSON array of integers as produced by encoding/json, with or
// without UseNumber.
func parseIDs(v interface{}) ([]int64, error) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("must be a list of ids")
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		switch n := item.(type) {
		case float64:
			if n != math.Trunc(n) || n <= 0 {
				return nil, fmt.Errorf("%v is not a valid id", n)
			}
			ids = append(ids, int64(n))
		case json.Number:
			id, err := n.Int64()
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("%s is not a valid id", n)
			}
			ids = append(ids, id)
		case int64:
			ids = append(ids, n)
		case int:
			ids = append(ids, int64(n))
		default:
			return nil, fmt.Errorf("must be a list of ids")
		}
	}
	return ids, nil
}
