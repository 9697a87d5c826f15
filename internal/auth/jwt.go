package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"opalpixel/invoicing/internal/models"
)

const issuer = "opalpixel-invoicing"

// Claims defines the structure of the JWT claims.
type Claims struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity converts the claims into the identity core operations act on.
func (c *Claims) Identity() (models.Identity, error) {
	id, err := primitive.ObjectIDFromHex(c.UserID)
	if err != nil {
		return models.Identity{}, fmt.Errorf("invalid user id in token: %w", err)
	}
	switch c.Role {
	case models.RoleAdmin, models.RoleWorker:
	default:
		return models.Identity{}, fmt.Errorf("invalid role in token: %q", c.Role)
	}
	return models.Identity{UserID: id, Role: c.Role}, nil
}

// GenerateJWT creates a signed token for the given identity.
func GenerateJWT(identity models.Identity, secretKey string, ttl time.Duration) (string, error) {
	if identity.IsZero() {
		return "", errors.New("cannot issue a token without a user")
	}
	now := time.Now()
	claims := &Claims{
		UserID: identity.UserID.Hex(),
		Role:   identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   identity.UserID.Hex(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT verifies a JWT string and returns the claims if valid.
func ValidateJWT(tokenString string, secretKey string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	}, jwt.WithIssuer(issuer))

	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid JWT")
	}

	return claims, nil
}
