package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/model"
)

func testIdentity() *model.Identity {
	facility := "H0000"
	return &model.Identity{
		UserID:             42,
		Email:              "cho@clinic.org",
		HealthFacilityName: &facility,
		Roles:              []model.RoleName{model.RoleCHO},
		VHTList:            []int64{3, 5},
		IsLoggedIn:         true,
	}
}

func TestJWT_RoundTrip(t *testing.T) {
	svc := NewJWTService(Config{Secret: "access-secret", RefreshSecret: "refresh-secret"})

	token, err := svc.GenerateAccessToken(testIdentity())
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, model.TokenTypeAccess, claims.Type)
	assert.Equal(t, int64(42), claims.Identity.UserID)
	assert.Equal(t, []int64{3, 5}, claims.Identity.VHTList)
	assert.True(t, claims.Identity.HasRole(model.RoleCHO))
}

func TestJWT_RefreshIsNotAnAccessToken(t *testing.T) {
	svc := NewJWTService(Config{Secret: "access-secret", RefreshSecret: "refresh-secret"})

	refresh, err := svc.GenerateRefreshToken(testIdentity())
	require.NoError(t, err)

	_, err = svc.ValidateToken(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims, err := svc.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, model.TokenTypeRefresh, claims.Type)
}

func TestJWT_SameSecretStillChecksType(t *testing.T) {
	svc := NewJWTService(Config{Secret: "shared"})

	refresh, err := svc.GenerateRefreshToken(testIdentity())
	require.NoError(t, err)

	_, err = svc.ValidateToken(refresh)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestJWT_Expired(t *testing.T) {
	svc := NewJWTService(Config{Secret: "s", AccessTTL: time.Minute}).(*jwtService)
	issued := time.Now().Add(-time.Hour)
	svc.now = func() time.Time { return issued }

	token, err := svc.GenerateAccessToken(testIdentity())
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWT_Tampered(t *testing.T) {
	svc := NewJWTService(Config{Secret: "s"})
	other := NewJWTService(Config{Secret: "other"})

	token, err := other.GenerateAccessToken(testIdentity())
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
