package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/repository"
)

var (
	ErrUserAlreadyExists    = errors.New("user with this email already exists")
	ErrAuthenticationFailed = errors.New("authentication failed: invalid email or password")
	ErrHashingFailed        = errors.New("failed to hash password")
	ErrTokenGeneration      = errors.New("failed to generate authentication token")
)

const (
	minPasswordLength = 8
	defaultTokenTTL   = time.Hour
	tokenIssuer       = "fitness-sync"
)

// AuthService registers users and issues the bearer tokens that open sync sessions.
type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (token string, user *domain.User, err error)
	GetJWTSecret() string
}

type authService struct {
	users    repository.UserRepository
	secret   []byte
	tokenTTL time.Duration
}

// NewAuthService panics on an empty secret; tokens signed with it would be forgeable.
func NewAuthService(users repository.UserRepository, jwtSecret string, tokenTTL time.Duration) AuthService {
	if jwtSecret == "" {
		panic("auth: JWT secret cannot be empty")
	}
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	return &authService{users: users, secret: []byte(jwtSecret), tokenTTL: tokenTTL}
}

func validateRegistration(name, email, password string) error {
	switch {
	case name == "" || email == "" || password == "":
		return fmt.Errorf("%w: name, email and password are required", ErrInvalidInput)
	case len(password) < minPasswordLength:
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	return nil
}

func (s *authService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if err := validateRegistration(name, email, password); err != nil {
		return nil, err
	}

	switch _, err := s.users.GetByEmail(ctx, email); {
	case err == nil:
		return nil, ErrUserAlreadyExists
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("lookup %s: %w", email, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrHashingFailed
	}

	user := &domain.User{Name: name, Email: email, PasswordHash: string(hash)}
	id, err := s.users.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicate) {
		// Lost a race with a concurrent registration; the unique index decided.
		return nil, ErrUserAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	user.ID = id
	user.PasswordHash = ""
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil, ErrAuthenticationFailed
	}
	if err != nil {
		return "", nil, fmt.Errorf("lookup %s: %w", email, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrAuthenticationFailed
	}

	token, err := s.issueToken(user.ID, time.Now())
	if err != nil {
		return "", nil, ErrTokenGeneration
	}
	user.PasswordHash = ""
	return token, user, nil
}

// jwtClaims carries the owner id that keys the caller's sync session.
type jwtClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

func (s *authService) issueToken(userID string, now time.Time) (string, error) {
	claims := &jwtClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *authService) GetJWTSecret() string {
	return string(s.secret)
}
