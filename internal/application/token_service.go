package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/teammeeting/internal/persistence"
)

// WebServiceToken is a long lived credential used by the mobile app and scripts.
type WebServiceToken struct {
	ID         string
	UserID     int64
	SecretHash string
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// TokenRepository persists web service tokens.
type TokenRepository interface {
	CreateToken(ctx context.Context, token WebServiceToken) error
	GetToken(ctx context.Context, id string) (WebServiceToken, error)
	TouchToken(ctx context.Context, id string, usedAt time.Time) error
}

// TokenService issues and verifies web service tokens of the form "<id>.<secret>".
type TokenService struct {
	tokens          TokenRepository
	users           UserDirectory
	idGenerator     func() string
	secretGenerator func() string
	now             func() time.Time
	params          Argon2idParams
	logger          *slog.Logger
}

// NewTokenService constructs a token service.
func NewTokenService(tokens TokenRepository, users UserDirectory, idGenerator, secretGenerator func() string, now func() time.Time, logger *slog.Logger) *TokenService {
	if now == nil {
		now = time.Now
	}
	return &TokenService{
		tokens:          tokens,
		users:           users,
		idGenerator:     idGenerator,
		secretGenerator: secretGenerator,
		now:             now,
		params:          DefaultArgon2idParams,
		logger:          defaultLogger(logger),
	}
}

// IssueToken creates a token for an existing user and returns its plain text form.
func (s *TokenService) IssueToken(ctx context.Context, userID int64) (token string, err error) {
	logger := serviceLogger(ctx, s.logger, "TokenService", "IssueToken", "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to issue token", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "token issued")
	}()

	if _, err = s.users.Profile(ctx, userID); err != nil {
		err = mapDirectoryError(err)
		return
	}

	id := s.idGenerator()
	secret := s.secretGenerator()
	if id == "" || secret == "" || strings.Contains(id, ".") {
		err = fmt.Errorf("token generator produced an unusable value")
		return
	}

	var hash string
	hash, err = HashSecret(secret, s.params)
	if err != nil {
		return
	}

	now := s.now()
	if err = s.tokens.CreateToken(ctx, WebServiceToken{ID: id, UserID: userID, SecretHash: hash, CreatedAt: now, LastUsedAt: now}); err != nil {
		return
	}
	token = id + "." + secret
	return
}

// VerifyToken resolves the principal owning a token.
func (s *TokenService) VerifyToken(ctx context.Context, token string) (Principal, error) {
	id, secret, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || id == "" || secret == "" {
		return Principal{}, ErrInvalidToken
	}

	stored, err := s.tokens.GetToken(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) || errors.Is(err, ErrNotFound) {
			return Principal{}, ErrInvalidToken
		}
		return Principal{}, err
	}
	if err := VerifySecret(stored.SecretHash, secret); err != nil {
		return Principal{}, ErrInvalidToken
	}

	if err := s.tokens.TouchToken(ctx, id, s.now()); err != nil {
		serviceLogger(ctx, s.logger, "TokenService", "VerifyToken", "token_id", id).
			WarnContext(ctx, "failed to record token use", "error", err)
	}
	return Principal{UserID: stored.UserID}, nil
}
