package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/inopsio/platform/internal/apperrors"
)

// ExpiryLeeway extends token validity past the nominal expiry to absorb
// clock skew between hosts. It is applied only on the expiry side; a token
// is never accepted before its issue time.
const ExpiryLeeway = 60 * time.Second

// TokenClaims is the verified content of an access token.
type TokenClaims struct {
	Subject   uuid.UUID
	ExpiresAt time.Time
}

// TokenService issues and verifies signed bearer tokens. Tokens are signed
// with HMAC-SHA256, not encrypted: the payload is tamper-evident but
// readable.
//
// There is no server-side revocation list: once issued, a token stays valid
// until natural expiry regardless of logout, which is a client-side discard
// of the stored credential. Known limitation, kept deliberately.
type TokenService struct {
	signingSecret []byte
	issuer        string
}

// NewTokenService creates a token service. The secret must be at least 32
// bytes for HMAC-SHA256.
func NewTokenService(signingSecret []byte, issuer string) (*TokenService, error) {
	if len(signingSecret) < 32 {
		return nil, errors.New("token signing secret must be at least 32 bytes")
	}
	if issuer == "" {
		return nil, errors.New("token issuer is required")
	}

	return &TokenService{
		signingSecret: signingSecret,
		issuer:        issuer,
	}, nil
}

// Issue creates a signed token asserting principalID for ttl.
func (s *TokenService) Issue(principalID uuid.UUID, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("token ttl must be greater than 0")
	}

	now := time.Now()
	claims := &jwt.RegisteredClaims{
		Subject:   principalID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    s.issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.signingSecret)
}

// Verify recomputes the signature over the payload and checks expiry with
// the configured leeway. Failures carry apperrors kinds: ExpiredToken for a
// token past its window, InvalidToken for everything else.
func (s *TokenService) Verify(tokenString string) (*TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingSecret, nil
	},
		jwt.WithLeeway(ExpiryLeeway),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ExpiredToken()
		}
		return nil, apperrors.InvalidToken(err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return nil, apperrors.InvalidToken(errors.New("invalid claims"))
	}

	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperrors.InvalidToken(fmt.Errorf("invalid subject: %w", err))
	}

	return &TokenClaims{
		Subject:   subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
