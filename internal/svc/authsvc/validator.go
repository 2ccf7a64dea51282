package authsvc

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mkrupp/inkspira/internal/domain"
)

// opaqueTokenBytes is the entropy of refresh and reset tokens.
const opaqueTokenBytes = 32

// SignToken signs claims with RS256.
func SignToken(claims domain.AuthToken, key *rsa.PrivateKey) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ValidateToken verifies the signature, issuer and expiry of an access token
// as of now and returns its claims.
func ValidateToken(
	tokenString string,
	publicKey *rsa.PublicKey,
	issuer string,
	now func() time.Time,
) (domain.AuthToken, error) {
	var claims domain.AuthToken

	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}

			return publicKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return domain.AuthToken{}, errors.Join(domain.ErrInvalidAuthToken, err)
	}

	if claims.Type != domain.TokenTypeAccess || claims.Subject == "" {
		return domain.AuthToken{}, fmt.Errorf("%w: not an access token", domain.ErrInvalidAuthToken)
	}

	return claims, nil
}

// NewOpaqueToken returns a random URL-safe token.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns the SHA-256 digest under which an opaque token is stored.
func HashToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))

	return sum[:]
}
