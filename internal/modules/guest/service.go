package guest

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrInvalidToken = errors.New("invalid guest token")

const issuer = "minprice"

// Token is an issued guest identity.
type Token struct {
	Token     string    `json:"token"`
	GuestID   uuid.UUID `json:"guest_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service issues and verifies opaque per-device guest tokens.
type Service interface {
	Issue() (*Token, error)
	Verify(token string) (uuid.UUID, error)
}

type service struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewService(signingKey string, ttl time.Duration) Service {
	return &service{key: []byte(signingKey), ttl: ttl, now: time.Now}
}

func (s *service) Issue() (*Token, error) {
	id := uuid.New()
	now := s.now()
	expires := now.Add(s.ttl)
	claims := &jwt.StandardClaims{
		Subject:   id.String(),
		Issuer:    issuer,
		IssuedAt:  now.Unix(),
		ExpiresAt: expires.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return nil, errors.Wrap(err, "sign guest token")
	}
	return &Token{Token: signed, GuestID: id, ExpiresAt: expires}, nil
}

func (s *service) Verify(token string) (uuid.UUID, error) {
	claims := &jwt.StandardClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, errors.Wrapf(ErrInvalidToken, "%v", err)
	}
	if claims.Issuer != issuer {
		return uuid.Nil, errors.Wrap(ErrInvalidToken, "wrong issuer")
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, errors.Wrap(ErrInvalidToken, "bad subject")
	}
	return id, nil
}
