package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/pkg/errors"
)

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=5"`
	Role     string `json:"role" validate:"omitempty,oneof=VHT HCW ADMIN CHO"`
}

func TestValidate_OK(t *testing.T) {
	v := New()
	assert.NoError(t, v.Validate(&signup{Email: "a@b.org", Password: "12345"}))
}

func TestValidate_FieldErrors(t *testing.T) {
	v := New()

	err := v.Validate(&signup{Email: "not-an-email", Password: "123", Role: "NURSE"})
	require.Error(t, err)

	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrValidation, appErr.Code)
	require.Len(t, appErr.Fields, 3)

	byField := map[string]errors.FieldError{}
	for _, f := range appErr.Fields {
		byField[f.Field] = f
	}
	assert.Equal(t, "email", byField["email"].Rule)
	assert.Equal(t, "min", byField["password"].Rule)
	assert.Equal(t, "password must be at least 5 characters long", byField["password"].Message)
	assert.Equal(t, "oneof", byField["role"].Rule)
}

func TestValidate_Required(t *testing.T) {
	v := New()

	err := v.Validate(&signup{})
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Len(t, appErr.Fields, 2)
	assert.Equal(t, "email is required", appErr.Fields[0].Message)
}
