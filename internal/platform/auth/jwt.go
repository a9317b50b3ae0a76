package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptySecret  = errors.New("jwt secret is empty")
	ErrEmptyIssuer  = errors.New("jwt issuer is empty")
	ErrBadTTL       = errors.New("jwt ttl must be > 0")
	ErrEmptySubject = errors.New("jwt subject is empty")
)

type Claims struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
}

type jwtClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService 签发与校验会话令牌
type TokenService interface {
	Sign(subject string, role string) (string, error)
	Verify(token string) (Claims, error)
}

func NewHS256Service(secret, issuer string, ttl time.Duration) (TokenService, error) {
	switch {
	case secret == "":
		return nil, ErrEmptySecret
	case issuer == "":
		return nil, ErrEmptyIssuer
	case ttl <= 0:
		return nil, ErrBadTTL
	}
	return &hs256Service{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}
