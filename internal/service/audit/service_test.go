package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository/memory"
	"github.com/jwalitptl/referral-api/pkg/logger"
)

func TestService_Log(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Audit(), logger.Nop())

	ctx := WithClientIP(context.Background(), "10.0.0.7")
	svc.Log(ctx, Entry{
		ActorID:    Actor(&model.Identity{UserID: 9}),
		Action:     model.AuditActionDelete,
		EntityType: model.AuditEntityUser,
		EntityID:   "12",
		Metadata:   map[string]interface{}{"reason": "left"},
	})

	logs := store.AuditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, int64(9), *logs[0].UserID)
	assert.Equal(t, "10.0.0.7", logs[0].IPAddress)
	assert.Equal(t, "delete", logs[0].Action)
	assert.Equal(t, "left", logs[0].Metadata["reason"])
}

func TestService_Cleanup(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Audit(), logger.Nop())

	old := &model.AuditLog{Action: "login", CreatedAt: time.Now().Add(-48 * time.Hour)}
	require.NoError(t, store.Audit().Create(context.Background(), old))
	svc.Log(context.Background(), Entry{Action: "login"})

	deleted, err := svc.Cleanup(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Len(t, store.AuditLogs(), 1)
}

func TestNilServiceIsSafe(t *testing.T) {
	var svc *Service
	assert.NotPanics(t, func() { svc.Log(context.Background(), Entry{}) })
	assert.Nil(t, Actor(nil))
}
