package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

const issuer = "xkey-api"

// Claims carries only the user ID. The role is looked up from the store on every
// request so that demotion or deletion takes effect before the token expires.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// GenerateJWT creates a signed session token for a user.
func GenerateJWT(userID utils.SixID, secretKey string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return tokenString, nil
}

// ValidateJWT verifies a token and returns the user ID it was issued for.
func ValidateJWT(tokenString string, secretKey string) (utils.SixID, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return utils.SixID{}, fmt.Errorf("failed to parse JWT: %w", err)
	}
	if !token.Valid {
		return utils.SixID{}, errors.New("invalid JWT")
	}

	userID, err := utils.ParseSixID(claims.UserID)
	if err != nil {
		return utils.SixID{}, fmt.Errorf("invalid user id in JWT: %w", err)
	}
	return userID, nil
}
