package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_IssueAndValidate(t *testing.T) {
	svc := NewTokenService("test-signing-secret")

	token, err := svc.Issue("alice", time.Hour)
	require.NoError(t, err)

	subject, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
}

func TestTokenService_RejectsWrongSecret(t *testing.T) {
	token, err := NewTokenService("secret-a").Issue("alice", time.Hour)
	require.NoError(t, err)

	_, err = NewTokenService("secret-b").Validate(token)
	assert.Error(t, err)
}

func TestTokenService_RejectsExpiredToken(t *testing.T) {
	svc := NewTokenService("test-signing-secret")

	token, err := svc.Issue("alice", -time.Minute)
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.Error(t, err)
}

func TestTokenService_RejectsGarbage(t *testing.T) {
	svc := NewTokenService("test-signing-secret")

	_, err := svc.Validate("ik_not_a_token")
	assert.Error(t, err)
}
