package session

import (
	"testing"
	"time"

	"catalog_agent/pkg/core/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	m := NewManager("s3cret", 0)

	_, err := m.Login("wrong")
	assert.ErrorIs(t, err, ErrInvalidSecret)
	_, err = m.Login("")
	assert.ErrorIs(t, err, ErrInvalidSecret)

	token, err := m.Login("s3cret")
	require.NoError(t, err)
	assert.True(t, m.Valid(token))
	assert.False(t, m.Valid("forged"))

	other, err := m.Login("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestLogin_NoSecretConfigured(t *testing.T) {
	m := NewManager("", 0)
	_, err := m.Login("")
	assert.ErrorIs(t, err, ErrGateDisabled)
}

func TestSessionExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m := NewManager("k", time.Hour)
	m.now = func() time.Time { return now }

	token, err := m.Login("k")
	require.NoError(t, err)

	now = now.Add(50 * time.Minute)
	assert.True(t, m.Valid(token), "activity refreshes the session")
	now = now.Add(50 * time.Minute)
	assert.True(t, m.Valid(token))
	now = now.Add(61 * time.Minute)
	assert.False(t, m.Valid(token))
}

func TestStageAndDiscard(t *testing.T) {
	m := NewManager("k", 0)
	token, err := m.Login("k")
	require.NoError(t, err)

	p := &reconcile.Proposal{ID: "p1", Kind: reconcile.KindCreate, Identity: "A", Fields: map[string]string{"Nome": "A"}}
	require.NoError(t, m.Stage(token, p))

	// The staged copy is independent of the caller's.
	p.Fields["Nome"] = "B"
	got, err := m.Proposal(token, "p1")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Fields["Nome"])

	pending, err := m.Pending(token)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, m.Discard(token, "p1"))
	_, err = m.Proposal(token, "p1")
	assert.ErrorIs(t, err, ErrUnknownProposal)
	assert.ErrorIs(t, m.Discard(token, "p1"), ErrUnknownProposal)
}

func TestLogoutDropsProposals(t *testing.T) {
	m := NewManager("k", 0)
	token, err := m.Login("k")
	require.NoError(t, err)
	require.NoError(t, m.Stage(token, &reconcile.Proposal{ID: "p1"}))

	m.Logout(token)
	assert.False(t, m.Valid(token))
	_, err = m.Proposal(token, "p1")
	assert.ErrorIs(t, err, ErrNoSession)
	assert.ErrorIs(t, m.Stage(token, &reconcile.Proposal{ID: "p2"}), ErrNoSession)
}

func TestSessionsAreIsolated(t *testing.T) {
	m := NewManager("k", 0)
	a, _ := m.Login("k")
	b, _ := m.Login("k")
	require.NoError(t, m.Stage(a, &reconcile.Proposal{ID: "p1"}))

	_, err := m.Proposal(b, "p1")
	assert.ErrorIs(t, err, ErrUnknownProposal)
}
