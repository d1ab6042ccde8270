package referral

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository/memory"
	"github.com/jwalitptl/referral-api/internal/service/audit"
	"github.com/jwalitptl/referral-api/internal/service/event"
	"github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/validator"
)

type fixture struct {
	store *memory.Store
	svc   *Service
	actor *model.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	svc := NewService(store, store.Referrals(), store.Patients(), store.Readings(), store.Facilities(),
		event.NewEventService(store.Outbox()), validator.New(), audit.NewService(store.Audit(), logger.Nop()))

	require.NoError(t, store.Facilities().CreateFacility(ctx, &model.HealthFacility{HealthFacilityName: "H0000"}))
	require.NoError(t, store.Facilities().CreateFacility(ctx, &model.HealthFacility{HealthFacilityName: "H1000"}))
	for _, id := range []string{"P1", "P2"} {
		require.NoError(t, store.Patients().Create(ctx, &model.Patient{PatientID: id, PatientSex: model.SexFemale}))
	}
	require.NoError(t, store.Readings().Create(ctx, &model.Reading{ReadingID: "r1", PatientID: "P1"}))

	u := &model.User{Email: "hcw@clinic.org", PasswordHash: "x"}
	require.NoError(t, store.Users().Create(ctx, u))
	return &fixture{store: store, svc: svc, actor: &model.Identity{UserID: u.ID}}
}

func str(s string) *string { return &s }

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ref, err := f.svc.Create(ctx, f.actor, &model.CreateReferralRequest{
		DateReferred:               "2024-01-01",
		PatientID:                  "P1",
		ReferralHealthFacilityName: "H0000",
		ReadingID:                  str("r1"),
		Comment:                    str("urgent"),
	})
	require.NoError(t, err)
	assert.NotZero(t, ref.ID)
	require.NotNil(t, ref.UserID)
	assert.Equal(t, f.actor.UserID, *ref.UserID)

	events := f.store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventReferralCreated, events[0].EventType)
	assert.JSONEq(t, `{"referralId":`+jsonInt(ref.ID)+`,"patientId":"P1","healthFacilityName":"H0000","readingId":"r1","userId":`+jsonInt(f.actor.UserID)+`}`,
		string(events[0].Payload))

	got, err := f.svc.Get(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, "urgent", *got.Comment)
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := func() *model.CreateReferralRequest {
		return &model.CreateReferralRequest{DateReferred: "2024-01-01", PatientID: "P1", ReferralHealthFacilityName: "H0000"}
	}

	tests := []struct {
		name  string
		edit  func(r *model.CreateReferralRequest)
		code  errors.ErrorCode
		field string
	}{
		{"missing date", func(r *model.CreateReferralRequest) { r.DateReferred = "" }, errors.ErrValidation, "dateReferred"},
		{"unknown patient", func(r *model.CreateReferralRequest) { r.PatientID = "P404" }, errors.ErrValidation, "patientId"},
		{"unknown facility", func(r *model.CreateReferralRequest) { r.ReferralHealthFacilityName = "H9" }, errors.ErrValidation, "referralHealthFacilityName"},
		{"unknown reading", func(r *model.CreateReferralRequest) { r.ReadingID = str("r404") }, errors.ErrValidation, "readingId"},
		{"reading of another patient", func(r *model.CreateReferralRequest) {
			r.PatientID = "P2"
			r.ReadingID = str("r1")
		}, errors.ErrValidation, "readingId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base()
			tt.edit(req)
			_, err := f.svc.Create(ctx, f.actor, req)
			appErr, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, appErr.Code)
			require.NotEmpty(t, appErr.Fields)
			assert.Equal(t, tt.field, appErr.Fields[0].Field)
		})
	}
	assert.Empty(t, f.store.OutboxEvents())

	_, err := f.svc.Create(ctx, nil, base())
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}

func TestCreate_OneReferralPerReading(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := &model.CreateReferralRequest{
		DateReferred: "2024-01-01", PatientID: "P1", ReferralHealthFacilityName: "H0000", ReadingID: str("r1"),
	}

	_, err := f.svc.Create(ctx, f.actor, req)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.actor, req)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	assert.Len(t, f.store.OutboxEvents(), 1)
}

func TestListAndMapped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	withReading, err := f.svc.Create(ctx, f.actor, &model.CreateReferralRequest{
		DateReferred: "d", PatientID: "P1", ReferralHealthFacilityName: "H0000", ReadingID: str("r1"),
	})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.actor, &model.CreateReferralRequest{
		DateReferred: "d", PatientID: "P2", ReferralHealthFacilityName: "H1000",
	})
	require.NoError(t, err)

	all, err := f.svc.List(ctx, &model.ReferralFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byFacility, err := f.svc.List(ctx, &model.ReferralFilter{HealthFacilityName: "H1000"})
	require.NoError(t, err)
	require.Len(t, byFacility, 1)
	assert.Equal(t, "P2", byFacility[0].PatientID)

	mapped, err := f.svc.Mapped(ctx, &model.ReferralFilter{})
	require.NoError(t, err)
	require.Len(t, mapped, 1)
	assert.Equal(t, withReading.ID, mapped["r1"].ID)

	_, err = f.svc.Get(ctx, 9999)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func jsonInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
