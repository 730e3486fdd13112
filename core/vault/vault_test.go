package vault

import (
	"os"
	"path/filepath"
	"testing"

	"filippo.io/age"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateIdentity(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "keys", "identity.agekey")

	first, err := LoadOrCreateIdentity(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := LoadOrCreateIdentity(path)
	require.NoError(t, err)
	assert.Equal(t, first.String(), second.String())
}

func TestLoadIdentity_NoKey(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "empty.agekey")
	require.NoError(t, os.WriteFile(path, []byte("# nothing here\n"), 0o600))

	_, err := LoadIdentity(path)
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestEncryptDecrypt(t *testing.T) {
	t.Parallel()
	id, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	sealed, err := Encrypt([]byte("access_token = \"abc\"\n"), id.Recipient())
	require.NoError(t, err)
	assert.True(t, IsEncrypted(sealed))
	assert.NotContains(t, string(sealed), "abc")

	plain, err := Decrypt(sealed, id)
	require.NoError(t, err)
	assert.Equal(t, "access_token = \"abc\"\n", string(plain))

	other, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	_, err = Decrypt(sealed, other)
	assert.Error(t, err)
}
