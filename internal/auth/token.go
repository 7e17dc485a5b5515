package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrWrongSubject = errors.New("token does not match resource")
)

// Callback kinds. A token minted for one kind is rejected by the others.
const (
	CallbackResearch = "research"
	CallbackChat     = "chat"
)

// CallbackClaims identify the resource a workflow callback may update.
type CallbackClaims struct {
	Kind       string `json:"kind"`
	ResourceID string `json:"resource_id"`
	jwt.RegisteredClaims
}

// CallbackSigner mints and verifies the HMAC tokens embedded in callback URLs.
type CallbackSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewCallbackSigner(secret string, ttl time.Duration) *CallbackSigner {
	return &CallbackSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Sign returns a token that authorizes callbacks for kind/resourceID until the TTL elapses.
func (s *CallbackSigner) Sign(kind, resourceID string) (string, error) {
	now := s.now()
	claims := CallbackClaims{
		Kind:       kind,
		ResourceID: resourceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "reseich-api",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign callback token: %w", err)
	}
	return token, nil
}

// Verify checks the signature, expiry and that the token was minted for kind/resourceID.
func (s *CallbackSigner) Verify(tokenString, kind, resourceID string) error {
	claims := &CallbackClaims{}
	parser := jwt.Parser{
		ValidMethods: []string{jwt.SigningMethodHS256.Alg()},
	}

	_, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		var validationErr *jwt.ValidationError
		if errors.As(err, &validationErr) && validationErr.Errors&jwt.ValidationErrorExpired != 0 {
			return ErrExpiredToken
		}
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Kind != kind || claims.ResourceID != resourceID {
		return ErrWrongSubject
	}
	return nil
}
