package service_test

import (
	"context"
	"testing"
	"time"

	"booksphere-backend/internal/domain"
	"booksphere-backend/internal/security"
	"booksphere-backend/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}
func (m *MockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}
func (m *MockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}
func (m *MockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

const testSecret = "test-secret-key-that-is-long-enough-123"

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()
	input := service.RegisterInput{
		Username:  "ada",
		Email:     "ada@example.com",
		Password:  "correct-horse",
		FirstName: "Ada",
		LastName:  "Lovelace",
	}

	t.Run("Success", func(t *testing.T) {
		userRepo := new(MockUserRepo)
		svc := service.NewAuthService(userRepo, security.NewTokenManager(testSecret, time.Hour, 24*time.Hour))

		userRepo.On("GetByUsername", ctx, "ada").Return(nil, domain.ErrUserNotFound)
		userRepo.On("GetByEmail", ctx, "ada@example.com").Return(nil, domain.ErrUserNotFound)
		userRepo.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil).Run(func(args mock.Arguments) {
			args.Get(1).(*domain.User).ID = 7
		})

		user, err := svc.Register(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, int64(7), user.ID)
		assert.Equal(t, domain.UserRoleUser, user.Role)
		assert.True(t, user.Active)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct-horse")))
		userRepo.AssertExpectations(t)
	})

	t.Run("Duplicate Username", func(t *testing.T) {
		userRepo := new(MockUserRepo)
		svc := service.NewAuthService(userRepo, security.NewTokenManager(testSecret, time.Hour, 24*time.Hour))
		userRepo.On("GetByUsername", ctx, "ada").Return(&domain.User{ID: 1}, nil)

		_, err := svc.Register(ctx, input)
		assert.ErrorIs(t, err, domain.ErrDuplicateUser)
		userRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Bad Email", func(t *testing.T) {
		svc := service.NewAuthService(new(MockUserRepo), security.NewTokenManager(testSecret, time.Hour, 24*time.Hour))
		in := input
		in.Email = "not-an-email"
		_, err := svc.Register(ctx, in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("Short Password", func(t *testing.T) {
		svc := service.NewAuthService(new(MockUserRepo), security.NewTokenManager(testSecret, time.Hour, 24*time.Hour))
		in := input
		in.Password = "short"
		_, err := svc.Register(ctx, in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("Admin Role Refused", func(t *testing.T) {
		svc := service.NewAuthService(new(MockUserRepo), security.NewTokenManager(testSecret, time.Hour, 24*time.Hour))
		in := input
		in.Role = domain.UserRoleAdmin
		_, err := svc.Register(ctx, in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	tokens := security.NewTokenManager(testSecret, time.Hour, 24*time.Hour)
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	stored := &domain.User{ID: 3, Username: "ada", Email: "ada@example.com", PasswordHash: string(hash), Role: domain.UserRoleAuthor, Active: true}

	t.Run("By Email", func(t *testing.T) {
		userRepo := new(MockUserRepo)
		svc := service.NewAuthService(userRepo, tokens)
		userRepo.On("GetByEmail", ctx, "ada@example.com").Return(stored, nil)

		user, access, refresh, err := svc.Login(ctx, "ada@example.com", "correct-horse")
		require.NoError(t, err)
		assert.Equal(t, int64(3), user.ID)

		claims, err := tokens.ValidateToken(access)
		require.NoError(t, err)
		assert.Equal(t, int64(3), claims.UserID)
		assert.Equal(t, security.TokenTypeAccess, claims.Type)
		assert.Equal(t, "AUTHOR", claims.Role)

		claims, err = tokens.ValidateToken(refresh)
		require.NoError(t, err)
		assert.Equal(t, security.TokenTypeRefresh, claims.Type)
	})

	t.Run("By Username Wrong Password", func(t *testing.T) {
		userRepo := new(MockUserRepo)
		svc := service.NewAuthService(userRepo, tokens)
		userRepo.On("GetByUsername", ctx, "ada").Return(stored, nil)

		_, _, _, err := svc.Login(ctx, "ada", "wrong-horse")
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("Unknown User", func(t *testing.T) {
		userRepo := new(MockUserRepo)
		svc := service.NewAuthService(userRepo, tokens)
		userRepo.On("GetByUsername", ctx, "nobody").Return(nil, domain.ErrUserNotFound)

		_, _, _, err := svc.Login(ctx, "nobody", "correct-horse")
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
		assert.Equal(t, domain.KindUnauthenticated, domain.KindOf(err))
	})
}

func TestAuthService_RefreshToken(t *testing.T) {
	ctx := context.Background()
	userRepo := new(MockUserRepo)
	svc := service.NewAuthService(userRepo, security.NewTokenManager(testSecret, time.Hour, 24*time.Hour))

	userRepo.On("GetByID", ctx, int64(3)).Return(&domain.User{ID: 3, Email: "ada@example.com", Role: domain.UserRoleUser, Active: true}, nil)
	userRepo.On("GetByID", ctx, int64(4)).Return(&domain.User{ID: 4, Active: false}, nil)

	access, refresh, err := svc.RefreshToken(ctx, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)

	_, _, err = svc.RefreshToken(ctx, 4)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}
