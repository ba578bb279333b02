package live

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer mints and verifies short-lived HMAC tokens for the owner-only
// stats stream. EventSource cannot attach an Authorization header, so the
// stream authenticates via a signed query-string token instead of the
// session cookie.
type TokenIssuer struct {
	Secret []byte
	TTL    time.Duration
}

func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TokenIssuer{Secret: secret, TTL: ttl}
}

func (t *TokenIssuer) Mint(surveyID, ownerID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":       ownerID,
		"survey_id": surveyID,
		"iat":       now.Unix(),
		"exp":       now.Add(t.TTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
}

// Verify checks the signature, expiry and survey binding, returning the
// owner id the token was minted for.
func (t *TokenIssuer) Verify(tokenString, surveyID string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.Secret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if claims["survey_id"] != surveyID {
		return "", fmt.Errorf("token not valid for this survey")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("token missing subject")
	}
	return sub, nil
}
