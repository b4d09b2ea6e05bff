package util

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestMintAndValidateSessionToken(t *testing.T) {
	token, err := MintSessionToken("user-1", "user@example.com", "Pat", "test-secret")
	require.NoError(t, err)

	claims, err := ValidateJWT(token, "test-secret")
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "user@example.com", claims.Email)
	require.Equal(t, "Pat", claims.Name)
	require.WithinDuration(t, time.Now().Add(SessionDuration), claims.ExpiresAt.Time, time.Minute)
}

func TestValidateJWTWrongSecret(t *testing.T) {
	token, err := MintSessionToken("user-1", "user@example.com", "Pat", "test-secret")
	require.NoError(t, err)

	_, err = ValidateJWT(token, "other-secret")
	require.Error(t, err)
}

func TestValidateJWTExpired(t *testing.T) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = ValidateJWT(token, "test-secret")
	require.Error(t, err)
}

func TestValidateJWTUnsupportedAlgorithm(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateJWT(token, "test-secret")
	require.Error(t, err)
}

func TestValidateJWTGarbage(t *testing.T) {
	_, err := ValidateJWT("not-a-token", "test-secret")
	require.Error(t, err)
}

func TestWordCount(t *testing.T) {
	require.Equal(t, 0, WordCount(""))
	require.Equal(t, 0, WordCount("   \n\t "))
	require.Equal(t, 1, WordCount("hello"))
	require.Equal(t, 5, WordCount("  the quick   brown\nfox jumps "))
}
