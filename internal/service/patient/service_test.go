package patient

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository/memory"
	"github.com/jwalitptl/referral-api/internal/service/audit"
	"github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/validator"
)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := NewService(store, store.Patients(), store.Readings(), validator.New(),
		audit.NewService(store.Audit(), logger.Nop()))
	return svc, store
}

func createReq(id string) *model.CreatePatientRequest {
	age := 28
	name := "Jane"
	return &model.CreatePatientRequest{PatientID: id, PatientName: &name, PatientAge: &age, PatientSex: "FEMALE"}
}

func TestCreateAndGet(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	actor := &model.Identity{UserID: 7}

	p, err := svc.Create(ctx, actor, createReq("P1"))
	require.NoError(t, err)
	assert.Equal(t, model.SexFemale, p.PatientSex)
	assert.Equal(t, 28, p.PatientAge)

	require.NoError(t, store.Readings().Create(ctx, &model.Reading{ReadingID: "r1", PatientID: "P1"}))

	detail, err := svc.GetWithReadings(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "P1", detail.PatientID)
	require.Len(t, detail.Readings, 1)
	assert.Equal(t, "r1", detail.Readings[0].ReadingID)

	logs := store.AuditLogs()
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].UserID)
	assert.Equal(t, int64(7), *logs[0].UserID)

	_, err = svc.Get(ctx, "P2")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestCreate_Rejections(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, nil, createReq("P1"))
	require.NoError(t, err)

	_, err = svc.Create(ctx, nil, createReq("P1"))
	assert.True(t, errors.Is(err, errors.ErrConflict))

	bad := createReq("P2")
	bad.PatientSex = "UNKNOWN"
	_, err = svc.Create(ctx, nil, bad)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	noAge := createReq("P3")
	noAge.PatientAge = nil
	_, err = svc.Create(ctx, nil, noAge)
	appErr, ok := errors.As(err)
	require.True(t, ok)
	require.Len(t, appErr.Fields, 1)
	assert.Equal(t, "patientAge", appErr.Fields[0].Field)
}

func TestParsePatch(t *testing.T) {
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(`{
		"patientAge": 31,
		"patientSex": "OTHER",
		"isPregnant": true,
		"zone": null,
		"patientName": "Ann"
	}`), &raw))

	fields, err := ParsePatch(raw)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"patient_age":  31,
		"patient_sex":  "OTHER",
		"is_pregnant":  true,
		"zone":         nil,
		"patient_name": "Ann",
	}, fields)

	_, err = ParsePatch(map[string]interface{}{
		"patientId":  "P2",
		"patientAge": -1.0,
		"isPregnant": "yes",
	})
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrValidation, appErr.Code)
	require.Len(t, appErr.Fields, 3)
	assert.Equal(t, "isPregnant", appErr.Fields[0].Field)
	assert.Equal(t, "patientAge", appErr.Fields[1].Field)
	assert.Equal(t, "patientId", appErr.Fields[2].Field)
}

func TestUpdate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, nil, createReq("P1"))
	require.NoError(t, err)

	p, err := svc.Update(ctx, nil, "P1", map[string]interface{}{"patientAge": 29.0, "isPregnant": true})
	require.NoError(t, err)
	assert.Equal(t, 29, p.PatientAge)
	require.NotNil(t, p.IsPregnant)
	assert.True(t, *p.IsPregnant)
	require.NotNil(t, p.PatientName)
	assert.Equal(t, "Jane", *p.PatientName)

	_, err = svc.Update(ctx, nil, "P404", map[string]interface{}{"zone": "Z1"})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
