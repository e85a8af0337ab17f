package domain

import (
	"strings"
	"time"
)

type UserRole string

const (
	UserRoleUser   UserRole = "USER"
	UserRoleAuthor UserRole = "AUTHOR"
	UserRoleAdmin  UserRole = "ADMIN"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Active       bool      `json:"active"`
	CreatedOn    time.Time `json:"created_on"`
}

func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// CanManageBook reports whether the user may change the given book's catalog entry.
func (u *User) CanManageBook(b *Book) bool {
	return u.IsAdmin() || (u.Role == UserRoleAuthor && b.AuthorID == u.ID)
}
