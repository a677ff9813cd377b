package lobby

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuerIssueAndVerifyRoundTrip(t *testing.T) {
	issuer := newTokenIssuer("shared-secret", time.Minute)

	token, err := issuer.Issue(7, "alice", "bob")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.RoomID)
	assert.Equal(t, "alice", claims.P1)
	assert.Equal(t, "bob", claims.P2)
}

func TestTokenIssuerRejectsATokenFromADifferentSecret(t *testing.T) {
	issuer := newTokenIssuer("secret-a", time.Minute)
	other := newTokenIssuer("secret-b", time.Minute)

	token, err := issuer.Issue(1, "alice", "bob")
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.Error(t, err)
}

func TestTokenIssuerRejectsAnExpiredToken(t *testing.T) {
	issuer := newTokenIssuer("secret", -time.Minute)

	token, err := issuer.Issue(1, "alice", "bob")
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.Error(t, err)
}
