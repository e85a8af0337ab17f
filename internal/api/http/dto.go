package http

import (
	"time"

	"booksphere-backend/internal/domain"
)

type registerRequest struct {
	Username  string `json:"username" validate:"required,max=64"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Role      string `json:"role" validate:"omitempty,oneof=USER AUTHOR"`
}

type loginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	User         *domain.User `json:"user,omitempty"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

type createBookRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	ISBN        string `json:"isbn" validate:"required,max=32"`
	AuthorID    int64  `json:"author_id" validate:"gte=0"`
	TotalCopies int32  `json:"total_copies"`
	RentalPrice string `json:"rental_price" validate:"required,numeric"`
}

type copiesRequest struct {
	TotalCopies *int32 `json:"total_copies" validate:"required"`
}

type priceRequest struct {
	RentalPrice string `json:"rental_price" validate:"required,numeric"`
}

type activeRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type issueRequest struct {
	BookID  int64      `json:"book_id" validate:"required,gt=0"`
	DueDate *time.Time `json:"due_date"`
}

type countResponse struct {
	Count int64 `json:"count"`
}
