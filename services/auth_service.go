package services

import (
	"context"
	"fmt"
	"interest-chat/auth"
	"interest-chat/domain/account"
	"interest-chat/errors"
	"interest-chat/infrastructure/storage"
)

type IAuthService interface {
	Login(ctx context.Context, email, password string) (Session, error)
	Register(ctx context.Context, registration account.Registration) (Session, error)
}

type Token string

func (t Token) String() string {
	return string(t)
}

// Session is what a successful register or login hands back to the client.
type Session struct {
	Token Token    `json:"token"`
	User  UserView `json:"user"`
}

type AuthService struct {
	userRepository storage.IUserRepository
	issuer         *auth.TokenIssuer
}

func NewAuthService(repo storage.IUserRepository, issuer *auth.TokenIssuer) IAuthService {
	return &AuthService{userRepository: repo, issuer: issuer}
}

func (s *AuthService) Register(ctx context.Context, registration account.Registration) (Session, error) {
	// Validation runs before the expensive hashing
	if err := auth.ValidateRegistration(registration); err != nil {
		return Session{}, err
	}

	hashedPassword, err := auth.HashPassword(registration.Password)
	if err != nil {
		return Session{}, fmt.Errorf("%w: hashing failed: %v", errors.ErrInternal, err)
	}

	user, err := s.userRepository.CreateUser(ctx, registration.NewUser(hashedPassword))
	if err != nil {
		return Session{}, err // ErrUserAlreadyExists if email is taken
	}
	return s.session(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	// Generic error to prevent user enumeration attacks
	user, err := s.userRepository.GetUserByEmail(ctx, email)
	if err != nil || !user.IsActive() {
		return Session{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return Session{}, errors.ErrInvalidCredentials
	}

	return s.session(user)
}

func (s *AuthService) session(user account.User) (Session, error) {
	token, err := s.issuer.GenerateToken(user.ID, user.Roles)
	if err != nil {
		return Session{}, errors.ErrTokenGeneration
	}
	return Session{Token: Token(token), User: toUserView(user)}, nil
}
