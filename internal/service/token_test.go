package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/pkg/clock"
)

func TestTokenManager_Roundtrip(t *testing.T) {
	clk := clock.NewFixed(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	m := NewTokenManager("secret", 15*time.Minute, clk)
	userID := uuid.New()

	token, exp, err := m.GenerateAccess(userID, valueobject.RoleArbiter)
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(15*time.Minute), exp)

	gotID, role, err := m.ParseAccess(token)
	require.NoError(t, err)
	assert.Equal(t, userID, gotID)
	assert.Equal(t, valueobject.RoleArbiter, role)
}

func TestTokenManager_Rejects(t *testing.T) {
	clk := clock.NewFixed(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	m := NewTokenManager("secret", time.Minute, clk)

	_, _, err := m.GenerateAccess(uuid.New(), valueobject.Role("root"))
	require.ErrorIs(t, err, ErrInvalidRole)

	token, _, err := m.GenerateAccess(uuid.New(), valueobject.RoleBuyer)
	require.NoError(t, err)

	other := NewTokenManager("другой секрет", time.Minute, clk)
	_, _, err = other.ParseAccess(token)
	assert.Error(t, err)

	clk.Advance(2 * time.Minute)
	_, _, err = m.ParseAccess(token)
	assert.Error(t, err)
}
