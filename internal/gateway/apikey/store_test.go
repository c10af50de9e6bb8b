package apikey

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "apikeys.json"), "admin-secret")
}

func TestIssueAndResolve(t *testing.T) {
	s := newTestStore(t)

	key, err := s.Issue("alice", "alice's phone")
	require.Nil(t, err)
	require.NotEmpty(t, key)

	sessionID, ok := s.Resolve(key)
	require.True(t, ok)
	assert.Equal(t, "alice", sessionID)

	_, ok = s.Resolve("not-a-key")
	assert.False(t, ok)
}

func TestAdminKeyAlwaysResolvesToDefault(t *testing.T) {
	s := newTestStore(t)

	sessionID, ok := s.Resolve("admin-secret")
	require.True(t, ok)
	assert.Equal(t, config.DefaultSessionIdentity, sessionID)
	assert.True(t, s.IsAdmin("admin-secret"))
	assert.False(t, s.IsAdmin("something-else"))
}

func TestAdminKeyWorksWithCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apikeys.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s := NewStore(path, "admin-secret")
	sessionID, ok := s.Resolve("admin-secret")
	require.True(t, ok)
	assert.Equal(t, config.DefaultSessionIdentity, sessionID)
	assert.Empty(t, s.List())
}

func TestRevoke(t *testing.T) {
	s := newTestStore(t)

	key, err := s.Issue("alice", "")
	require.Nil(t, err)

	assert.True(t, s.Revoke(key))
	_, ok := s.Resolve(key)
	assert.False(t, ok)

	// already revoked
	assert.False(t, s.Revoke(key))
	// the admin key is never revoked
	assert.False(t, s.Revoke("admin-secret"))
	_, ok = s.Resolve("admin-secret")
	assert.True(t, ok)
}

func TestPersistenceAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apikeys.json")

	s := NewStore(path, "admin-secret")
	key, err := s.Issue("alice", "desc")
	require.Nil(t, err)

	reloaded := NewStore(path, "admin-secret")
	sessionID, ok := reloaded.Resolve(key)
	require.True(t, ok)
	assert.Equal(t, "alice", sessionID)

	rec := reloaded.List()[key]
	assert.Equal(t, "alice", rec.SessionID)
	assert.Equal(t, "desc", rec.Description)
	assert.False(t, rec.CreatedAt.IsZero())
}
