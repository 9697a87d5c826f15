package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"opalpixel/invoicing/internal/models"
)

func TestJWT_RoundTrip(t *testing.T) {
	identity := models.Identity{UserID: primitive.NewObjectID(), Role: models.RoleWorker}

	token, err := GenerateJWT(identity, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateJWT(token, "secret")
	require.NoError(t, err)
	got, err := claims.Identity()
	require.NoError(t, err)
	assert.Equal(t, identity, got)
}

func TestJWT_Rejects(t *testing.T) {
	identity := models.Identity{UserID: primitive.NewObjectID(), Role: models.RoleAdmin}

	token, err := GenerateJWT(identity, "secret", time.Hour)
	require.NoError(t, err)
	_, err = ValidateJWT(token, "other-secret")
	assert.Error(t, err, "wrong secret")

	expired, err := GenerateJWT(identity, "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateJWT(expired, "secret")
	assert.Error(t, err, "expired token")

	_, err = GenerateJWT(models.Identity{}, "secret", time.Hour)
	assert.Error(t, err, "empty identity")
}

func TestJWT_RejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{UserID: primitive.NewObjectID().Hex(), Role: models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateJWT(token, "secret")
	assert.Error(t, err)
}

func TestClaims_IdentityInvalid(t *testing.T) {
	_, err := (&Claims{UserID: "nope", Role: models.RoleWorker}).Identity()
	assert.Error(t, err)

	_, err = (&Claims{UserID: primitive.NewObjectID().Hex(), Role: "root"}).Identity()
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("correct horse", hash))
	assert.False(t, CheckPasswordHash("wrong horse", hash))

	_, err = HashPassword("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}
