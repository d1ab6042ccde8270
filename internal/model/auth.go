package model

import (
	"github.com/golang-jwt/jwt/v5"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=5"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh" validate:"required"`
}

// Identity is what the access token asserts about its bearer.
type Identity struct {
	UserID             int64      `json:"userId"`
	Email              string     `json:"email"`
	FirstName          *string    `json:"firstName"`
	HealthFacilityName *string    `json:"healthFacilityName"`
	Roles              []RoleName `json:"roles"`
	VHTList            []int64    `json:"vhtList"`
	IsLoggedIn         bool       `json:"isLoggedIn"`
}

func (i *Identity) HasRole(role RoleName) bool {
	return i != nil && HasRole(i.Roles, role)
}

// AuthView is returned by a successful login or refresh.
type AuthView struct {
	Identity
	Token   string `json:"token"`
	Refresh string `json:"refresh"`
}

// TokenType separates access from refresh tokens signed with different secrets.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// TokenClaims represents JWT claims
type TokenClaims struct {
	jwt.RegisteredClaims
	Type     TokenType `json:"type"`
	Identity Identity  `json:"identity"`
}
