package main

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rasapos/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short", ManagerPIN: "739154"})
	assert.Error(t, err)

	err = validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "123456"})
	assert.Error(t, err)
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "739154"})
	assert.NoError(t, err)
}

func TestValidatePINStrength(t *testing.T) {
	for _, pin := range []string{"999999", "234567", "876543", "112233", "73a154"} {
		assert.Error(t, validatePINStrength(pin), pin)
	}
	for _, pin := range []string{"739154", "40281937"} {
		assert.NoError(t, validatePINStrength(pin), pin)
	}
}

func TestOpenRepositoryFallsBackToMemory(t *testing.T) {
	repo, closeFn, err := openRepository(context.Background(), config.Config{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, closeFn)

	products, err := repo.ListProducts(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, products)
}
