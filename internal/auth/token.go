package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/recoagua/backend/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// Tokens issues and verifies HS256 bearer tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Identity is what a verified token says about the caller.
type Identity struct {
	UserID int64
	Role   models.UserRole
}

func (t *Tokens) Issue(userID int64, role models.UserRole) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    string(role),
		"exp":     now.Add(t.ttl).Unix(),
		"iat":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

func (t *Tokens) Parse(raw string) (Identity, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	// JSON numbers decode as float64.
	uid, ok := claims["user_id"].(float64)
	if !ok || uid <= 0 {
		return Identity{}, ErrInvalidToken
	}
	role := models.RoleUser
	if r, ok := claims["role"].(string); ok && r == string(models.RoleAdmin) {
		role = models.RoleAdmin
	}
	return Identity{UserID: int64(uid), Role: role}, nil
}

type ctxKey int

const identityKey ctxKey = 0

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// UserID returns the authenticated user id stored by the auth middleware.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := FromContext(ctx)
	if !ok || id.UserID == 0 {
		return 0, false
	}
	return id.UserID, true
}
