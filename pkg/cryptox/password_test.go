package cryptox_test

import (
	"strings"
	"testing"

	"github.com/quorumhq/sessiond/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordProducesPHCFormat(t *testing.T) {
	cryptox.SetPepperPath(t.TempDir() + "/pepper")

	hash, err := cryptox.HashPassword("correct horse battery staple")
	require.NoError(t, err)

	parts := strings.Split(hash, "$")
	require.Len(t, parts, 6)
	require.Equal(t, "argon2id", parts[1])
	require.Equal(t, "v=19", parts[2])
	require.Contains(t, parts[3], "m=", "should contain memory parameter")
	require.Contains(t, parts[3], "t=", "should contain iterations parameter")
	require.Contains(t, parts[3], "p=", "should contain parallelism parameter")
}

func TestVerifyPassword(t *testing.T) {
	cryptox.SetPepperPath(t.TempDir() + "/pepper")

	hash, err := cryptox.HashPassword("s3cret")
	require.NoError(t, err)

	t.Run("matching password", func(t *testing.T) {
		require.NoError(t, cryptox.VerifyPassword("s3cret", hash))
	})

	t.Run("wrong password", func(t *testing.T) {
		err := cryptox.VerifyPassword("nope", hash)
		require.ErrorIs(t, err, cryptox.ErrPasswordMismatch)
	})

	t.Run("malformed hash", func(t *testing.T) {
		err := cryptox.VerifyPassword("s3cret", "$bcrypt$garbage")
		require.Error(t, err)
		require.NotErrorIs(t, err, cryptox.ErrPasswordMismatch)
	})

	t.Run("unique salts per hash", func(t *testing.T) {
		other, err := cryptox.HashPassword("s3cret")
		require.NoError(t, err)
		require.NotEqual(t, hash, other)
	})
}

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	tok, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)
	require.Len(t, tok, 43) // 32 bytes base64url, no padding

	_, err = cryptox.GenerateToken(0)
	require.Error(t, err)
}

func TestFingerprintIsDeterministic(t *testing.T) {
	t.Parallel()

	a := cryptox.Fingerprint("198.51.100.7")
	b := cryptox.Fingerprint("198.51.100.7")
	c := cryptox.Fingerprint("198.51.100.8")

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, a, 43)
}
