package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftwatch/internal/config"
	"driftwatch/internal/model"
)

func TestAuthLoginAndValidate(t *testing.T) {
	svc := NewAuthService(config.AuthConfig{Username: "ops", Password: "hunter2", JWTSecret: "s3cret", TokenTTL: time.Hour})

	resp, err := svc.Login("ops", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Contains(t, resp.OperatorID, "op_")

	claims, err := svc.ValidateOperatorToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.OperatorID, claims.OperatorID)
	assert.Equal(t, "ops", claims.Subject)
}

func TestAuthRejects(t *testing.T) {
	svc := NewAuthService(config.AuthConfig{Username: "ops", Password: "hunter2", JWTSecret: "s3cret"})

	_, err := svc.Login("ops", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.ValidateOperatorToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewAuthService(config.AuthConfig{Username: "ops", Password: "hunter2", JWTSecret: "different"})
	resp, err := other.Login("ops", "hunter2")
	require.NoError(t, err)
	_, err = svc.ValidateOperatorToken(resp.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthDisabledWithoutPassword(t *testing.T) {
	svc := NewAuthService(config.AuthConfig{Username: "ops"})
	_, err := svc.Login("ops", "")
	assert.ErrorIs(t, err, ErrAuthDisabled)
}

func TestMissingSecretIsNotGuessable(t *testing.T) {
	a := NewAuthService(config.AuthConfig{Username: "ops", Password: "hunter2"})
	b := NewAuthService(config.AuthConfig{Username: "ops", Password: "hunter2"})

	login, err := a.Login("ops", "hunter2")
	require.NoError(t, err)
	_, err = a.ValidateOperatorToken(login.Token)
	require.NoError(t, err)

	// a token signed by another process must not validate
	_, err = b.ValidateOperatorToken(login.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, &model.OperatorClaims{OperatorID: "op_forged"})
	signed, err := forged.SignedString([]byte("super-secret-key-change-in-production"))
	require.NoError(t, err)
	_, err = a.ValidateOperatorToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
