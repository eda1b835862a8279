package tokenstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-artists-client/internal/model"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "credentials.json"))
}

func validCredentials() model.Credentials {
	return model.Credentials{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    1_900_000_000_000,
		Username:     "admin",
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.Save(validCredentials()))

	loaded, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, validCredentials(), loaded)
}

func TestStore_LoadAbsent(t *testing.T) {
	store := newStore(t)

	_, ok := store.Load()
	assert.False(t, ok)
}

func TestStore_SaveRejectsIncompleteRecord(t *testing.T) {
	store := newStore(t)

	creds := validCredentials()
	creds.RefreshToken = ""

	assert.Error(t, store.Save(creds))

	_, ok := store.Load()
	assert.False(t, ok)
}

func TestStore_IncompleteRecordOnDiskIsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"accessToken":"A1","username":"admin"}`), 0o600))

	_, ok := New(path).Load()
	assert.False(t, ok)
}

func TestStore_CorruptFileIsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, ok := New(path).Load()
	assert.False(t, ok)
}

func TestStore_Clear(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.Save(validCredentials()))
	store.Clear()

	_, ok := store.Load()
	assert.False(t, ok)

	// Clearing an already-empty store is fine.
	store.Clear()
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.Save(validCredentials()))

	rotated := validCredentials()
	rotated.AccessToken = "A2"
	rotated.RefreshToken = "R2"
	require.NoError(t, store.Save(rotated))

	loaded, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, "A2", loaded.AccessToken)
	assert.Equal(t, "R2", loaded.RefreshToken)
}
