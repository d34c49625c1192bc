package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/huzaifasad/backendforfamily/internal/model"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload. Subject holds the principal ID.
type Claims struct {
	Role     model.Role `json:"role"`
	FamilyID int64      `json:"fam"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 bearer tokens.
type TokenIssuer struct {
	secret   []byte
	issuer   string
	ttl      time.Duration
	childTTL time.Duration
	now      func() time.Time
}

func NewTokenIssuer(secret, issuer string, ttl, childTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:   []byte(secret),
		issuer:   issuer,
		ttl:      ttl,
		childTTL: childTTL,
		now:      time.Now,
	}
}

// Issue returns a signed token for p and its expiry.
func (ti *TokenIssuer) Issue(p Principal) (string, time.Time, error) {
	now := ti.now()
	ttl := ti.ttl
	if p.Role == model.RoleChild {
		ttl = ti.childTTL
	}
	exp := now.Add(ttl)

	claims := Claims{
		Role:     p.Role,
		FamilyID: p.FamilyID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(p.ID, 10),
			Issuer:    ti.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify parses a token and returns the principal it names.
func (ti *TokenIssuer) Verify(tokenStr string) (Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return ti.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ti.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil || !token.Valid {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return Principal{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	switch claims.Role {
	case model.RoleParent, model.RoleChild, model.RoleAdmin:
	default:
		return Principal{}, fmt.Errorf("%w: bad role", ErrInvalidToken)
	}

	return Principal{ID: id, Role: claims.Role, FamilyID: claims.FamilyID, TokenID: claims.ID}, nil
}
