package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialVault(t *testing.T) {
	vault, err := NewCredentialVault(strings.Repeat("0f", 32))
	require.NoError(t, err)

	sealed, err := vault.Seal("panel-password")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "panel-password")

	again, err := vault.Seal("panel-password")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per seal")

	plain, err := vault.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "panel-password", plain)

	other, err := NewCredentialVault(strings.Repeat("1e", 32))
	require.NoError(t, err)
	_, err = other.Open(sealed)
	assert.ErrorIs(t, err, ErrSealedSecretInvalid)

	_, err = vault.Open("%%%")
	assert.ErrorIs(t, err, ErrSealedSecretInvalid)
	_, err = vault.Open("AAAA")
	assert.ErrorIs(t, err, ErrSealedSecretInvalid)
}

func TestNewCredentialVaultRejectsBadKeys(t *testing.T) {
	_, err := NewCredentialVault("zz")
	assert.Error(t, err)
	_, err = NewCredentialVault("abcd")
	assert.Error(t, err)
}
