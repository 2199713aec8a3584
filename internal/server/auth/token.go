package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taskkeeper/taskkeeper/internal/common"
)

// TokenTypeAccess marks short-lived signed tokens. Tokens carrying any other
// type value are rejected on verification.
const TokenTypeAccess = "access"

// Claims is the payload of a signed access token: subject email, user id,
// issue/expiry times and the type discriminator.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"user_id"`
	TokenType string `json:"type"`
}

// TokenCodec issues and verifies HS256-signed access tokens. The signing key
// and validity are fixed at construction and never change afterwards.
//
// There is no revocation path for issued tokens; they are trusted until
// expiry, which is why the validity must stay short.
type TokenCodec struct {
	secret   []byte
	validity time.Duration
}

func NewTokenCodec(secret []byte, validity time.Duration) *TokenCodec {
	return &TokenCodec{secret: secret, validity: validity}
}

// Issue signs an access token for the given user. The expiry is set to
// now + the configured validity.
func (c *TokenCodec) Issue(userID, email string) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.validity)),
		},
		UserID:    userID,
		TokenType: TokenTypeAccess,
	})

	return token.SignedString(c.secret)
}

// Verify parses the token and returns its claims. It returns
// common.ErrInvalidToken when the signature does not match, the structure is
// malformed, the type discriminator is wrong, or the expiry has passed.
// Expiry is checked against the current time on every call.
func (c *TokenCodec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, common.ErrInvalidToken
		}
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, common.ErrInvalidToken
	}

	if claims.TokenType != TokenTypeAccess || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
