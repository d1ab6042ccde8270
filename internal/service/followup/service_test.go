package followup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/repository/memory"
	"github.com/jwalitptl/referral-api/internal/service/audit"
	"github.com/jwalitptl/referral-api/internal/service/event"
	"github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/validator"
)

type fixture struct {
	store    *memory.Store
	svc      *Service
	actor    *model.Identity
	referral *model.Referral
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	svc := NewService(store, store.FollowUps(), store.Referrals(), event.NewEventService(store.Outbox()),
		validator.New(), audit.NewService(store.Audit(), logger.Nop()))

	require.NoError(t, store.Facilities().CreateFacility(ctx, &model.HealthFacility{HealthFacilityName: "H0000"}))
	require.NoError(t, store.Patients().Create(ctx, &model.Patient{PatientID: "P1", PatientSex: model.SexFemale}))
	u := &model.User{Email: "hcw@clinic.org", PasswordHash: "x"}
	require.NoError(t, store.Users().Create(ctx, u))
	ref := &model.Referral{DateReferred: "d", PatientID: "P1", ReferralHealthFacilityName: "H0000", UserID: &u.ID}
	require.NoError(t, store.Referrals().Create(ctx, ref))

	return &fixture{store: store, svc: svc, actor: &model.Identity{UserID: u.ID}, referral: ref}
}

func str(s string) *string { return &s }

func TestCreate_LinksReferral(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fu, err := f.svc.Create(ctx, f.actor, f.referral.ID, &model.FollowUpRequest{
		Diagnosis: str("pre-eclampsia"), DateAssessed: "2024-01-02",
	})
	require.NoError(t, err)
	assert.Equal(t, f.actor.UserID, fu.HealthcareWorkerID)

	ref, err := f.store.Referrals().Get(ctx, f.referral.ID)
	require.NoError(t, err)
	require.NotNil(t, ref.FollowUpID)
	assert.Equal(t, fu.ID, *ref.FollowUpID)
	require.NotNil(t, ref.FollowUp)
	assert.Equal(t, "pre-eclampsia", *ref.FollowUp.Diagnosis)

	events := f.store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventFollowUpCreated, events[0].EventType)

	_, err = f.svc.Create(ctx, f.actor, f.referral.ID, &model.FollowUpRequest{DateAssessed: "2024-01-03"})
	assert.True(t, errors.Is(err, errors.ErrConflict))
	assert.Len(t, f.store.OutboxEvents(), 1)
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.actor, f.referral.ID, &model.FollowUpRequest{})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = f.svc.Create(ctx, f.actor, 9999, &model.FollowUpRequest{DateAssessed: "d"})
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = f.svc.Create(ctx, nil, f.referral.ID, &model.FollowUpRequest{DateAssessed: "d"})
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fu, err := f.svc.Create(ctx, f.actor, f.referral.ID, &model.FollowUpRequest{DateAssessed: "2024-01-02"})
	require.NoError(t, err)

	other := &model.Identity{UserID: f.actor.UserID + 100}
	updated, err := f.svc.Update(ctx, other, fu.ID, &model.FollowUpRequest{
		Treatment: str("magnesium sulfate"), DateAssessed: "2024-01-05",
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05", updated.DateAssessed)
	assert.Equal(t, f.actor.UserID, updated.HealthcareWorkerID)

	got, err := f.svc.Get(ctx, fu.ID)
	require.NoError(t, err)
	assert.Equal(t, "magnesium sulfate", *got.Treatment)

	_, err = f.svc.Update(ctx, other, 9999, &model.FollowUpRequest{DateAssessed: "d"})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

// staleReferrals hides the follow-up link on reads, as a transaction that read the
// referral before a concurrent link committed would see it.
type staleReferrals struct {
	repository.ReferralRepository
}

func (r staleReferrals) Get(ctx context.Context, id int64) (*model.Referral, error) {
	ref, err := r.ReferralRepository.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ref.FollowUpID = nil
	ref.FollowUp = nil
	return ref, nil
}

func TestCreate_ConcurrentLinkIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.actor, f.referral.ID, &model.FollowUpRequest{DateAssessed: "2024-01-02"})
	require.NoError(t, err)

	stale := NewService(f.store, f.store.FollowUps(), staleReferrals{f.store.Referrals()},
		event.NewEventService(f.store.Outbox()), validator.New(), audit.NewService(f.store.Audit(), logger.Nop()))
	_, err = stale.Create(ctx, f.actor, f.referral.ID, &model.FollowUpRequest{DateAssessed: "2024-01-03"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	ref, err := f.store.Referrals().Get(ctx, f.referral.ID)
	require.NoError(t, err)
	require.NotNil(t, ref.FollowUpID)
	assert.Equal(t, first.ID, *ref.FollowUpID)
	assert.Len(t, f.store.OutboxEvents(), 1)
}
