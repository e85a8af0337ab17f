package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"booksphere-backend/internal/domain"
	"booksphere-backend/internal/logger"
	"booksphere-backend/internal/repository"
	"booksphere-backend/internal/security"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type authService struct {
	userRepo repository.UserRepository
	tokens   security.TokenManager
	validate *validator.Validate
}

func NewAuthService(userRepo repository.UserRepository, tokens security.TokenManager) AuthService {
	return &authService{
		userRepo: userRepo,
		tokens:   tokens,
		validate: validator.New(),
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	logger.EnterMethod("authService.Register", "username", input.Username, "email", input.Email)

	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)
	if input.Username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}
	if err := s.validate.Var(input.Email, "required,email"); err != nil {
		return nil, fmt.Errorf("%w: email %q", domain.ErrInvalidInput, input.Email)
	}
	if len(input.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}

	role := input.Role
	switch role {
	case "":
		role = domain.UserRoleUser
	case domain.UserRoleUser, domain.UserRoleAuthor:
	default:
		// admins are provisioned out of band
		return nil, fmt.Errorf("%w: role %s cannot be self-assigned", domain.ErrInvalidInput, role)
	}

	if _, err := s.userRepo.GetByUsername(ctx, input.Username); err == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateUser, input.Username)
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.userRepo.GetByEmail(ctx, input.Email); err == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateUser, input.Email)
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     input.Username,
		Email:        input.Email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		logger.ExitMethodWithError("authService.Register", err, "username", input.Username)
		return nil, err
	}

	logger.ExitMethod("authService.Register", "userID", user.ID)
	return user, nil
}

// Login accepts either the username or the email address.
func (s *authService) Login(ctx context.Context, login, password string) (*domain.User, string, string, error) {
	logger.EnterMethod("authService.Login", "login", login)

	var (
		user *domain.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = s.userRepo.GetByEmail(ctx, login)
	} else {
		user, err = s.userRepo.GetByUsername(ctx, login)
	}
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, "", "", err
		}
		logger.Warn("Login attempt for unknown user", "login", login)
		return nil, "", "", domain.ErrInvalidCredentials
	}
	if !user.Active {
		return nil, "", "", domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		logger.Warn("Login attempt with wrong password", "userID", user.ID)
		return nil, "", "", domain.ErrInvalidCredentials
	}

	access, refresh, err := s.generateTokens(user)
	if err != nil {
		return nil, "", "", err
	}

	logger.ExitMethod("authService.Login", "userID", user.ID)
	return user, access, refresh, nil
}

// RefreshToken issues a fresh token pair. The caller has already validated
// the refresh token and extracted userID from it.
func (s *authService) RefreshToken(ctx context.Context, userID int64) (string, string, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", "", domain.ErrInvalidCredentials
		}
		return "", "", err
	}
	if !user.Active {
		return "", "", domain.ErrInvalidCredentials
	}
	return s.generateTokens(user)
}

func (s *authService) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

func (s *authService) generateTokens(user *domain.User) (string, string, error) {
	access, err := s.tokens.GenerateAccessToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return "", "", err
	}
	refresh, err := s.tokens.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}
