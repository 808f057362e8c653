package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"account_service/internal/mail"
	"account_service/internal/models"
	"account_service/internal/storage"
)

type Service interface {
	Register(ctx context.Context, in RegisterInput) (string, error)
	RegisterPrivileged(ctx context.Context, in RegisterInput) (models.User, error)
	Activate(ctx context.Context, activationToken string) (models.User, error)
	Login(ctx context.Context, email, password string) (Session, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, userID, password string) error

	GetProfile(ctx context.Context, userID string) (models.User, error)
	ListProfiles(ctx context.Context) ([]models.User, error)
	UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) error
	UpdateRole(ctx context.Context, targetID string, role models.Role) error
	SoftDelete(ctx context.Context, targetID string) error
}

// Session is what a successful login hands back to the client.
type Session struct {
	Email        string
	AccessToken  string
	RefreshToken string
}

type Tokens interface {
	IssueActivationToken(pending models.PendingRegistration) (string, error)
	IssueAccessToken(userID string) (string, error)
	IssueRefreshToken(userID string) (string, error)
	VerifyActivation(tokenStr string) (models.PendingRegistration, error)
	VerifyRefresh(tokenStr string) (string, error)
}

type PasswordHasher interface {
	HashPassword(password string) (string, error)
	CheckPasswordHash(hash, password string) bool
	CheckMissing(password string) bool
}

type AccountService struct {
	storage   storage.Storage
	tokens    Tokens
	hasher    PasswordHasher
	mailer    mail.Sender
	clientURL string
}

var _ Service = (*AccountService)(nil)

func NewAccountService(st storage.Storage, tokens Tokens, hasher PasswordHasher, mailer mail.Sender, clientURL string) *AccountService {
	return &AccountService{
		storage:   st,
		tokens:    tokens,
		hasher:    hasher,
		mailer:    mailer,
		clientURL: strings.TrimRight(clientURL, "/"),
	}
}

// Register validates the input and mails an activation link. No user is
// stored until the returned token is redeemed through Activate.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (string, error) {
	const op = "service.Register"

	in.normalize()
	if verr := in.validateFields(false); verr != nil {
		return "", verr
	}

	if err := s.ensureEmailFree(ctx, in.Email); err != nil {
		return "", err
	}

	if verr := validatePassword(in.Password); verr != nil {
		return "", verr
	}

	passwordHash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return "", internal(fmt.Errorf("%s: %w", op, err))
	}

	token, err := s.tokens.IssueActivationToken(models.PendingRegistration{
		Names:        in.Names,
		Surname:      in.Surname,
		Email:        in.Email,
		PasswordHash: passwordHash,
	})
	if err != nil {
		return "", internal(fmt.Errorf("%s: %w", op, err))
	}

	if err := s.mailer.SendActivation(ctx, in.Email, s.clientURL+"/verify?token="+token); err != nil {
		return "", internal(fmt.Errorf("%s: %w", op, err))
	}

	return token, nil
}

// RegisterPrivileged creates an already active account with the given role.
func (s *AccountService) RegisterPrivileged(ctx context.Context, in RegisterInput) (models.User, error) {
	const op = "service.RegisterPrivileged"

	in.normalize()
	if verr := in.validateFields(true); verr != nil {
		return models.User{}, verr
	}

	if err := s.ensureEmailFree(ctx, in.Email); err != nil {
		return models.User{}, err
	}

	if verr := validatePassword(in.Password); verr != nil {
		return models.User{}, verr
	}

	if verr := validateRole(in.Role); verr != nil {
		return models.User{}, verr
	}

	passwordHash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return models.User{}, internal(fmt.Errorf("%s: %w", op, err))
	}

	return s.createUser(ctx, op, models.User{
		Names:        in.Names,
		Surname:      in.Surname,
		Email:        in.Email,
		PasswordHash: passwordHash,
		Role:         in.Role,
	})
}

// Activate redeems an activation token. Redeeming the same token twice
// fails the second time with MsgEmailExists.
func (s *AccountService) Activate(ctx context.Context, activationToken string) (models.User, error) {
	const op = "service.Activate"

	pending, err := s.tokens.VerifyActivation(activationToken)
	if err != nil {
		return models.User{}, newError(KindInvalidToken, MsgInvalidLink, err)
	}

	if err := s.ensureEmailFree(ctx, pending.Email); err != nil {
		return models.User{}, err
	}

	return s.createUser(ctx, op, models.User{
		Names:        pending.Names,
		Surname:      pending.Surname,
		Email:        pending.Email,
		PasswordHash: pending.PasswordHash,
		Role:         models.RoleStandard,
	})
}

// Login never tells the caller whether the email exists: unknown email,
// wrong password and deleted accounts fail the same way.
func (s *AccountService) Login(ctx context.Context, email, password string) (Session, error) {
	const op = "service.Login"

	user, err := s.storage.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			return Session{}, internal(fmt.Errorf("%s: %w", op, err))
		}
		s.hasher.CheckMissing(password)
		return Session{}, newError(KindAuthentication, MsgBadCredentials, nil)
	}

	if !s.hasher.CheckPasswordHash(user.PasswordHash, password) || user.Deleted {
		return Session{}, newError(KindAuthentication, MsgBadCredentials, nil)
	}

	access, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return Session{}, internal(fmt.Errorf("%s: %w", op, err))
	}

	refresh, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return Session{}, internal(fmt.Errorf("%s: %w", op, err))
	}

	return Session{
		Email:        user.Email,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// Refresh mints a new access token. The refresh token itself is not rotated.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	const op = "service.Refresh"

	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return "", newError(KindInvalidToken, MsgLoginAgain, err)
	}

	user, err := s.storage.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return "", newError(KindInvalidToken, MsgLoginAgain, err)
		}
		return "", internal(fmt.Errorf("%s: %w", op, err))
	}
	if user.Deleted {
		return "", newError(KindInvalidToken, MsgLoginAgain, nil)
	}

	access, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return "", internal(fmt.Errorf("%s: %w", op, err))
	}

	return access, nil
}

// ForgotPassword mails a reset link carrying a fresh access token. Unlike
// Login it reports unknown emails.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	const op = "service.ForgotPassword"

	email = normalizeEmail(email)

	user, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return newError(KindNotFound, MsgEmailNotExists, err)
		}
		return internal(fmt.Errorf("%s: %w", op, err))
	}
	if user.Deleted {
		return newError(KindNotFound, MsgEmailNotExists, nil)
	}

	access, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return internal(fmt.Errorf("%s: %w", op, err))
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, s.clientURL+"/user/reset/"+access); err != nil {
		return internal(fmt.Errorf("%s: %w", op, err))
	}

	return nil
}

func (s *AccountService) ResetPassword(ctx context.Context, userID, password string) error {
	const op = "service.ResetPassword"

	if verr := validatePassword(password); verr != nil {
		return verr
	}

	passwordHash, err := s.hasher.HashPassword(password)
	if err != nil {
		return internal(fmt.Errorf("%s: %w", op, err))
	}

	if err := s.storage.UpdatePassword(ctx, userID, passwordHash); err != nil {
		return s.storeError(op, err)
	}

	return nil
}

func (s *AccountService) GetProfile(ctx context.Context, userID string) (models.User, error) {
	const op = "service.GetProfile"

	user, err := s.storage.GetUserByID(ctx, userID)
	if err != nil {
		return models.User{}, s.storeError(op, err)
	}

	return user, nil
}

func (s *AccountService) ListProfiles(ctx context.Context) ([]models.User, error) {
	const op = "service.ListProfiles"

	users, err := s.storage.ListUsers(ctx)
	if err != nil {
		return nil, internal(fmt.Errorf("%s: %w", op, err))
	}

	return users, nil
}

func (s *AccountService) UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) error {
	const op = "service.UpdateProfile"

	upd.Names = strings.TrimSpace(upd.Names)
	upd.Surname = strings.TrimSpace(upd.Surname)
	upd.Avatar = strings.TrimSpace(upd.Avatar)

	if err := s.storage.UpdateProfile(ctx, userID, upd); err != nil {
		return s.storeError(op, err)
	}

	return nil
}

func (s *AccountService) UpdateRole(ctx context.Context, targetID string, role models.Role) error {
	const op = "service.UpdateRole"

	role = models.Role(strings.TrimSpace(string(role)))
	if verr := validateRole(role); verr != nil {
		return verr
	}

	if err := s.storage.UpdateRole(ctx, targetID, role); err != nil {
		return s.storeError(op, err)
	}

	return nil
}

func (s *AccountService) SoftDelete(ctx context.Context, targetID string) error {
	const op = "service.SoftDelete"

	if err := s.storage.SoftDelete(ctx, targetID); err != nil {
		return s.storeError(op, err)
	}

	return nil
}

// ensureEmailFree is the early, friendly uniqueness check. The store's
// unique constraint is what actually guards concurrent inserts; createUser
// maps that failure to the same message.
func (s *AccountService) ensureEmailFree(ctx context.Context, email string) error {
	const op = "service.ensureEmailFree"

	_, err := s.storage.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return newError(KindValidation, MsgEmailExists, nil)
	case errors.Is(err, storage.ErrUserNotFound):
		return nil
	default:
		return internal(fmt.Errorf("%s: %w", op, err))
	}
}

func (s *AccountService) createUser(ctx context.Context, op string, user models.User) (models.User, error) {
	created, err := s.storage.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, storage.ErrEmailExists) {
			return models.User{}, newError(KindValidation, MsgEmailExists, err)
		}
		return models.User{}, internal(fmt.Errorf("%s: %w", op, err))
	}

	return created, nil
}

func (s *AccountService) storeError(op string, err error) error {
	if errors.Is(err, storage.ErrUserNotFound) {
		return newError(KindNotFound, MsgUserNotFound, err)
	}
	return internal(fmt.Errorf("%s: %w", op, err))
}
