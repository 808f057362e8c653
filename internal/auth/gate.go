package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"account_service/internal/models"
	"account_service/internal/storage"
)

var ErrForbidden = errors.New("admin resources access denied")

// UserFinder loads the account behind an authenticated id.
type UserFinder interface {
	GetUserByID(ctx context.Context, id string) (models.User, error)
}

type AccessVerifier interface {
	VerifyAccess(tokenStr string) (string, error)
}

// Gate runs the two guard stages in front of protected operations:
// Authenticate resolves a bearer access token into a user id, RequireAdmin
// checks that id against the stored role. Callers sequence them explicitly.
type Gate struct {
	tokens AccessVerifier
	users  UserFinder
}

func NewGate(tokens AccessVerifier, users UserFinder) *Gate {
	return &Gate{
		tokens: tokens,
		users:  users,
	}
}

// Authenticate accepts "Bearer <token>" as well as a bare token. Tokens of
// deleted or unknown accounts are rejected even before they expire.
func (g *Gate) Authenticate(ctx context.Context, authHeader string) (string, error) {
	const op = "auth.Authenticate"

	tokenStr := strings.TrimSpace(authHeader)
	if tokenStr == "" {
		return "", ErrInvalidToken
	}

	if scheme, rest, ok := strings.Cut(tokenStr, " "); ok {
		if !strings.EqualFold(scheme, "Bearer") {
			return "", ErrInvalidToken
		}
		tokenStr = strings.TrimSpace(rest)
	}

	userID, err := g.tokens.VerifyAccess(tokenStr)
	if err != nil {
		return "", err
	}

	user, err := g.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return "", fmt.Errorf("%w: unknown account", ErrInvalidToken)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if user.Deleted {
		return "", fmt.Errorf("%w: account deleted", ErrInvalidToken)
	}

	return userID, nil
}

func (g *Gate) RequireAdmin(ctx context.Context, userID string) error {
	const op = "auth.RequireAdmin"

	user, err := g.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrForbidden
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if user.Deleted || !user.IsAdmin() {
		return ErrForbidden
	}

	return nil
}
