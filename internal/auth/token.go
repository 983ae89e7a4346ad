package auth

import (
	"context"
	"fmt"
	"time"

	"pitchmatch/backend/internal/apperr"
	"pitchmatch/backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims defines the data stored inside the JWT.
type CustomClaims struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTResolver signs and validates HS256 tokens.
type JWTResolver struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewJWTResolver(secret, issuer string, ttl time.Duration) *JWTResolver {
	return &JWTResolver{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// GenerateToken creates a signed JWT for a specific user.
func (j *JWTResolver) GenerateToken(userID string, role models.Role) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

func (j *JWTResolver) Resolve(_ context.Context, tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return Identity{}, fmt.Errorf("%w: invalid claims", apperr.ErrUnauthorized)
	}
	if !claims.Role.Valid() {
		return Identity{}, fmt.Errorf("%w: unknown role %q", apperr.ErrUnauthorized, claims.Role)
	}
	return Identity{UserID: claims.UserID, Role: claims.Role}, nil
}
