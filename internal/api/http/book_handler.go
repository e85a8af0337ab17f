package http

import (
	"fmt"
	"net/http"

	"booksphere-backend/internal/domain"
	"booksphere-backend/internal/repository"
	"booksphere-backend/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type BookHandler struct {
	catalogSvc service.CatalogService
	rentalSvc  service.RentalService
	validate   *validator.Validate
}

func NewBookHandler(catalogSvc service.CatalogService, rentalSvc service.RentalService, v *validator.Validate) *BookHandler {
	return &BookHandler{catalogSvc: catalogSvc, rentalSvc: rentalSvc, validate: v}
}

// GET /api/v1/books?author_id=&title=&active_only=&page=&page_size=
func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	authorID, err := queryInt64(r, "author_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	activeOnly, err := queryBool(r, "active_only")
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter := repository.BookFilter{
		AuthorID:   authorID,
		Title:      r.URL.Query().Get("title"),
		ActiveOnly: activeOnly,
	}
	books, total, err := h.catalogSvc.ListBooks(r.Context(), filter, page, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[domain.Book]{Items: books, Total: total, Page: page})
}

// POST /api/v1/books
func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createBookRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		writeError(w, r, err)
		return
	}
	price, err := parsePrice(req.RentalPrice)
	if err != nil {
		writeError(w, r, err)
		return
	}
	book, err := h.catalogSvc.CreateBook(r.Context(), userID, service.NewBook{
		Title:       req.Title,
		ISBN:        req.ISBN,
		AuthorID:    req.AuthorID,
		TotalCopies: req.TotalCopies,
		RentalPrice: price,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

// GET /api/v1/books/popular?limit=
func (h *BookHandler) Popular(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt64(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	rows, err := h.catalogSvc.MostPopular(r.Context(), int32(limit))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// GET /api/v1/books/{id}
func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	book, err := h.catalogSvc.GetBook(r.Context(), bookID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// PUT /api/v1/books/{id}/copies
func (h *BookHandler) SetCopies(w http.ResponseWriter, r *http.Request) {
	userID, bookID, ok := h.actorAndBook(w, r)
	if !ok {
		return
	}
	var req copiesRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		writeError(w, r, err)
		return
	}
	book, err := h.catalogSvc.SetTotalCopies(r.Context(), userID, bookID, *req.TotalCopies)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// PUT /api/v1/books/{id}/price
func (h *BookHandler) SetPrice(w http.ResponseWriter, r *http.Request) {
	userID, bookID, ok := h.actorAndBook(w, r)
	if !ok {
		return
	}
	var req priceRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		writeError(w, r, err)
		return
	}
	price, err := parsePrice(req.RentalPrice)
	if err != nil {
		writeError(w, r, err)
		return
	}
	book, err := h.catalogSvc.UpdateRentalPrice(r.Context(), userID, bookID, price)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// PUT /api/v1/books/{id}/active
func (h *BookHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	userID, bookID, ok := h.actorAndBook(w, r)
	if !ok {
		return
	}
	var req activeRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		writeError(w, r, err)
		return
	}
	book, err := h.catalogSvc.SetActive(r.Context(), userID, bookID, *req.Active)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// GET /api/v1/books/{id}/audit, administrators only.
func (h *BookHandler) Audit(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r.Context()) {
		writeError(w, r, fmt.Errorf("%w: inventory audit is restricted to administrators", domain.ErrForbidden))
		return
	}
	bookID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	audit, err := h.catalogSvc.AuditInventory(r.Context(), bookID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, audit)
}

// GET /api/v1/books/{id}/rentals/active, for the book's author and administrators.
func (h *BookHandler) ActiveRentals(w http.ResponseWriter, r *http.Request) {
	userID, bookID, ok := h.actorAndBook(w, r)
	if !ok {
		return
	}
	book, err := h.catalogSvc.GetBook(r.Context(), bookID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if book.AuthorID != userID && !isAdmin(r.Context()) {
		writeError(w, r, fmt.Errorf("%w: book %d belongs to another author", domain.ErrForbidden, bookID))
		return
	}
	txs, err := h.rentalSvc.FindActiveRentalsByBook(r.Context(), bookID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *BookHandler) actorAndBook(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return 0, 0, false
	}
	bookID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return 0, 0, false
	}
	return userID, bookID, true
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid rental price %q", domain.ErrInvalidInput, raw)
	}
	return price, nil
}
