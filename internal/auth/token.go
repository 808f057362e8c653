package auth

import (
	"errors"
	"fmt"
	"time"

	"account_service/internal/config"
	"account_service/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = fmt.Errorf("%w: token expired", ErrInvalidToken)
)

type Kind string

const (
	KindActivation Kind = "activation"
	KindAccess     Kind = "access"
	KindRefresh    Kind = "refresh"
)

// Claims is the payload of access and refresh tokens.
type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

type ActivationClaims struct {
	models.PendingRegistration
	jwt.RegisteredClaims
}

type signer struct {
	key []byte
	ttl time.Duration
}

type TokenService struct {
	signers map[Kind]signer
	now     func() time.Time
}

type Option func(*TokenService)

// WithClock replaces time.Now for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(ts *TokenService) {
		ts.now = now
	}
}

func NewTokenService(cfg config.Tokens, opts ...Option) (*TokenService, error) {
	const op = "auth.NewTokenService"

	secrets := map[Kind]string{
		KindActivation: cfg.ActivationSecret,
		KindAccess:     cfg.AccessSecret,
		KindRefresh:    cfg.RefreshSecret,
	}
	seen := make(map[string]Kind, len(secrets))
	for kind, secret := range secrets {
		if secret == "" {
			return nil, fmt.Errorf("%s: empty %s secret", op, kind)
		}
		if other, ok := seen[secret]; ok {
			return nil, fmt.Errorf("%s: %s and %s secrets must differ", op, kind, other)
		}
		seen[secret] = kind
	}

	ts := &TokenService{
		signers: map[Kind]signer{
			KindActivation: {key: []byte(cfg.ActivationSecret), ttl: cfg.ActivationTTL},
			KindAccess:     {key: []byte(cfg.AccessSecret), ttl: cfg.AccessTTL},
			KindRefresh:    {key: []byte(cfg.RefreshSecret), ttl: cfg.RefreshTTL},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(ts)
	}

	for kind, s := range ts.signers {
		if s.ttl <= 0 {
			return nil, fmt.Errorf("%s: %s ttl must be positive", op, kind)
		}
	}

	return ts, nil
}

func (ts *TokenService) IssueActivationToken(pending models.PendingRegistration) (string, error) {
	claims := &ActivationClaims{
		PendingRegistration: pending,
		RegisteredClaims:    ts.registered(KindActivation, pending.Email),
	}

	return ts.sign(KindActivation, claims)
}

func (ts *TokenService) IssueAccessToken(userID string) (string, error) {
	return ts.issueUserToken(KindAccess, userID)
}

func (ts *TokenService) IssueRefreshToken(userID string) (string, error) {
	return ts.issueUserToken(KindRefresh, userID)
}

func (ts *TokenService) VerifyActivation(tokenStr string) (models.PendingRegistration, error) {
	claims := &ActivationClaims{}
	if err := ts.verify(KindActivation, tokenStr, claims); err != nil {
		return models.PendingRegistration{}, err
	}

	if claims.Email == "" || claims.PasswordHash == "" {
		return models.PendingRegistration{}, ErrInvalidToken
	}

	return claims.PendingRegistration, nil
}

func (ts *TokenService) VerifyAccess(tokenStr string) (string, error) {
	return ts.verifyUserToken(KindAccess, tokenStr)
}

func (ts *TokenService) VerifyRefresh(tokenStr string) (string, error) {
	return ts.verifyUserToken(KindRefresh, tokenStr)
}

func (ts *TokenService) issueUserToken(kind Kind, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("auth.issueUserToken: empty user id for %s token", kind)
	}

	claims := &Claims{
		UserID:           userID,
		RegisteredClaims: ts.registered(kind, userID),
	}

	return ts.sign(kind, claims)
}

func (ts *TokenService) verifyUserToken(kind Kind, tokenStr string) (string, error) {
	claims := &Claims{}
	if err := ts.verify(kind, tokenStr, claims); err != nil {
		return "", err
	}

	if claims.UserID == "" {
		return "", ErrInvalidToken
	}

	return claims.UserID, nil
}

func (ts *TokenService) registered(kind Kind, subject string) jwt.RegisteredClaims {
	now := ts.now()

	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ts.signers[kind].ttl)),
	}
}

func (ts *TokenService) sign(kind Kind, claims jwt.Claims) (string, error) {
	const op = "auth.sign"

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signers[kind].key)
	if err != nil {
		return "", fmt.Errorf("%s: %s: %w", op, kind, err)
	}

	return signed, nil
}

func (ts *TokenService) verify(kind Kind, tokenStr string, claims jwt.Claims) error {
	if tokenStr == "" {
		return ErrInvalidToken
	}

	key := ts.signers[kind].key

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return ErrInvalidToken
	}

	return nil
}
