package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"go.uber.org/zap"
)

type credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"min=6,max=72"`
}

// Service registers and authenticates users against bcrypt password hashes.
type Service struct {
	repo      Repository
	cost      int
	dummyHash []byte
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewService creates a new auth service hashing passwords with the given bcrypt cost.
func NewService(repo Repository, cost int, logger *zap.Logger) (*Service, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	// Compared against when the email is unknown so both failure paths cost a bcrypt round.
	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}

	return &Service{
		repo:      repo,
		cost:      cost,
		dummyHash: dummy,
		validate:  validator.New(),
		logger:    logger,
	}, nil
}

// Register validates the credentials and stores a new user with a salted password hash.
func (s *Service) Register(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)

	if err := s.validate.Struct(credentials{Email: email, Password: password}); err != nil {
		return ErrInvalidInput
	}

	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return ErrUserExists
	}

	if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("lookup user: %w", err)
	}

	// max counts runes; bcrypt caps the password at 72 bytes.
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return ErrInvalidInput
	}

	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return ErrUserExists
		}

		return fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", zap.String("userId", user.ID))

	return nil
}

// Login verifies the credentials. Unknown emails and wrong passwords are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (*PublicUser, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("lookup user: %w", err)
		}

		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))

		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug("login failed: password mismatch", zap.String("userId", user.ID))

		return nil, ErrInvalidCredentials
	}

	return &PublicUser{ID: user.ID, Email: user.Email}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
