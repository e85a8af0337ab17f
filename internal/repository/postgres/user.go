package postgres

import (
	"context"
	"time"

	"booksphere-backend/internal/domain"
	"booksphere-backend/internal/repository"
)

type userRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) repository.UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, username, email, first_name, last_name, password_hash, role, active, created_on`

func (r *userRepository) Create(ctx context.Context, u *domain.User) error {
	query := `INSERT INTO users (username, email, first_name, last_name, password_hash, role, active, created_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	if u.CreatedOn.IsZero() {
		u.CreatedOn = time.Now().UTC()
	}
	err := r.db.QueryRowContext(ctx, query, u.Username, u.Email, u.FirstName, u.LastName, u.PasswordHash, u.Role, u.Active, u.CreatedOn).Scan(&u.ID)
	return classify(err)
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, domain.ErrUserNotFound, id)
	}
	return u, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(username) = LOWER($1)`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, username))
	if err != nil {
		return nil, notFound(err, domain.ErrUserNotFound, username)
	}
	return u, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, notFound(err, domain.ErrUserNotFound, email)
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedOn)
	if err != nil {
		return nil, err
	}
	return u, nil
}
