package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/pkg/logger"
)

type clientIPKey struct{}

// WithClientIP stores the caller's address for entries logged with ctx.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// Entry describes one audited action. ActorID is nil for anonymous actions such as
// registration.
type Entry struct {
	ActorID    *int64
	Action     string
	EntityType string
	EntityID   string
	Metadata   map[string]interface{}
}

type Service struct {
	repo   repository.AuditRepository
	logger *logger.Logger
}

func NewService(repo repository.AuditRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, logger: log.With("audit")}
}

// Log writes an audit entry. A failure is logged and swallowed: auditing never fails
// the request that triggered it.
func (s *Service) Log(ctx context.Context, e Entry) {
	if s == nil {
		return
	}
	entry := &model.AuditLog{
		ID:         uuid.New(),
		UserID:     e.ActorID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Metadata:   model.JSONMap(e.Metadata),
		IPAddress:  clientIP(ctx),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error(err, "failed to write audit log",
			"action", e.Action, "entity_type", e.EntityType, "entity_id", e.EntityID)
	}
}

// Cleanup deletes entries older than retention.
func (s *Service) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteBefore(ctx, time.Now().Add(-retention))
}

// Actor returns the id of an authenticated identity, or nil.
func Actor(identity *model.Identity) *int64 {
	if identity == nil {
		return nil
	}
	id := identity.UserID
	return &id
}
