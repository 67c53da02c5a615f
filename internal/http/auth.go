package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/teammeeting/internal/application"
)

// TokenHeader carries a web service token issued by the issue-token command.
const TokenHeader = "X-Teammeeting-Token"

// TokenVerifier resolves web service tokens.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (application.Principal, error)
}

// Authenticator accepts HS256 bearer JWTs signed with the shared secret and,
// when a verifier is set, web service tokens.
type Authenticator struct {
	secret []byte
	tokens TokenVerifier
	now    func() time.Time
}

// NewAuthenticator constructs an authenticator. tokens may be nil.
func NewAuthenticator(secret string, tokens TokenVerifier, now func() time.Time) *Authenticator {
	if now == nil {
		now = time.Now
	}
	return &Authenticator{secret: []byte(secret), tokens: tokens, now: now}
}

// Authenticate returns the principal of the request. errMissingCredentials
// means the request carried neither credential.
func (a *Authenticator) Authenticate(r *http.Request) (application.Principal, error) {
	if token := strings.TrimSpace(r.Header.Get(TokenHeader)); token != "" {
		if a.tokens == nil {
			return application.Principal{}, application.ErrInvalidToken
		}
		return a.tokens.VerifyToken(r.Context(), token)
	}

	raw := bearerToken(r)
	if raw == "" {
		return application.Principal{}, errMissingCredentials
	}
	return a.parseJWT(raw)
}

func (a *Authenticator) parseJWT(raw string) (application.Principal, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return application.Principal{}, fmt.Errorf("%w: %v", application.ErrInvalidToken, err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return application.Principal{}, fmt.Errorf("%w: subject %q is not a user id", application.ErrInvalidToken, claims.Subject)
	}
	return application.Principal{UserID: userID}, nil
}

// SignToken issues a JWT for userID valid for ttl.
func (a *Authenticator) SignToken(userID int64, ttl time.Duration) (string, error) {
	if userID <= 0 {
		return "", errors.New("user id must be positive")
	}
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:  strconv.FormatInt(userID, 10),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func bearerToken(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
