package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/referral-api/internal/model"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrDuplicate  = errors.New("duplicate record")
	ErrForeignKey = errors.New("referenced record does not exist")
	ErrTooLong    = errors.New("value too long for column")
)

// All repository interfaces in one file
type (
	// Transactor runs fn inside one database transaction. Repositories called with the
	// ctx handed to fn join that transaction.
	Transactor interface {
		WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id int64) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		ExistsByEmail(ctx context.Context, email string) (bool, error)
		List(ctx context.Context) ([]*model.User, error)
		ListIDsByRole(ctx context.Context, role model.RoleName) ([]int64, error)
		Update(ctx context.Context, id int64, fields map[string]interface{}) error
		Delete(ctx context.Context, id int64) error
		AddSupervision(ctx context.Context, choID, vhtID int64) error
		ListSupervised(ctx context.Context, choID int64) ([]*model.User, error)
	}

	RoleRepository interface {
		Get(ctx context.Context, id int64) (*model.Role, error)
		GetByName(ctx context.Context, name model.RoleName) (*model.Role, error)
		List(ctx context.Context) ([]*model.Role, error)
		AssignToUser(ctx context.Context, userID, roleID int64) error
		ListUserRoles(ctx context.Context, userID int64) ([]model.RoleName, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id string) (*model.Patient, error)
		List(ctx context.Context) ([]*model.Patient, error)
		Update(ctx context.Context, id string, fields map[string]interface{}) error
	}

	ReadingRepository interface {
		Create(ctx context.Context, reading *model.Reading) error
		Get(ctx context.Context, id string) (*model.Reading, error)
		ListByPatient(ctx context.Context, patientID string) ([]*model.Reading, error)
	}

	ReferralRepository interface {
		Create(ctx context.Context, referral *model.Referral) error
		Get(ctx context.Context, id int64) (*model.Referral, error)
		List(ctx context.Context, filter *model.ReferralFilter) ([]*model.Referral, error)
		SetFollowUp(ctx context.Context, referralID, followUpID int64) error
	}

	FollowUpRepository interface {
		Create(ctx context.Context, followUp *model.FollowUp) error
		Get(ctx context.Context, id int64) (*model.FollowUp, error)
		Update(ctx context.Context, followUp *model.FollowUp) error
	}

	FacilityRepository interface {
		CreateFacility(ctx context.Context, facility *model.HealthFacility) error
		ListFacilities(ctx context.Context) ([]*model.HealthFacility, error)
		FacilityExists(ctx context.Context, name string) (bool, error)
		CreateVillage(ctx context.Context, village *model.Village) error
		ListVillages(ctx context.Context) ([]*model.Village, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ClaimPending locks up to limit pending events for the duration of fn.
		ClaimPending(ctx context.Context, limit int, fn func(ctx context.Context, events []*model.OutboxEvent) error) error
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, reason string, maxRetries int) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
