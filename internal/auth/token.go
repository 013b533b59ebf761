// Package auth issues the bearer tokens returned at login and turns them back
// into a caller identity on every request.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/user/entity"
)

var ErrInvalidToken = errors.New("invalid token")

// Caller is the authenticated identity attached to a request.
type Caller struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

func (c Caller) IsAdmin() bool { return c.Role == entity.RoleAdmin }

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 access tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  clockwork.Clock
}

func NewIssuer(secret, issuer string, ttl time.Duration, clock clockwork.Clock) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("auth: empty signing secret")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl, clock: clock}, nil
}

// Issue creates an access token for the user.
func (i *Issuer) Issue(u *entity.MinimalAuthView) (string, time.Time, error) {
	now := i.clock.Now()
	exp := now.Add(i.ttl)
	c := claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse verifies a token and returns the caller it was issued to.
func (i *Issuer) Parse(token string) (*Caller, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return &Caller{UserID: id, Role: c.Role}, nil
}
