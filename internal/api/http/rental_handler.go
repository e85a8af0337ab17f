package http

import (
	"fmt"
	"net/http"
	"time"

	"booksphere-backend/internal/domain"
	"booksphere-backend/internal/service"

	"github.com/go-playground/validator/v10"
)

type RentalHandler struct {
	rentalSvc  service.RentalService
	validate   *validator.Validate
	clock      service.Clock
	loanPeriod time.Duration
}

func NewRentalHandler(rentalSvc service.RentalService, v *validator.Validate, clock service.Clock, loanPeriod time.Duration) *RentalHandler {
	return &RentalHandler{rentalSvc: rentalSvc, validate: v, clock: clock, loanPeriod: loanPeriod}
}

// POST /api/v1/rentals
// The due date defaults to the configured loan period from now.
func (h *RentalHandler) Issue(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req issueRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		writeError(w, r, err)
		return
	}
	due := h.clock.Now().Add(h.loanPeriod)
	if req.DueDate != nil {
		due = req.DueDate.UTC()
	}
	t, err := h.rentalSvc.IssueBook(r.Context(), userID, req.BookID, due)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// GET /api/v1/rentals?user_id=&book_id=&author_id=&status=open|closed&from=&to=&page=&page_size=
// Non-administrators only see their own rentals or the rentals of books they wrote.
func (h *RentalHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, size, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter, err := transactionFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !isAdmin(r.Context()) && filter.AuthorID != userID {
		filter.UserID = userID
	}
	txs, total, err := h.rentalSvc.ListTransactions(r.Context(), filter, page, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[domain.Transaction]{Items: txs, Total: total, Page: page})
}

// GET /api/v1/rentals/active
func (h *RentalHandler) Active(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := h.rentalSvc.FindActiveRentalsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// GET /api/v1/rentals/overdue, administrators only.
func (h *RentalHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	txs, err := h.rentalSvc.FindOverdueTransactions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// GET /api/v1/rentals/summary, administrators only.
func (h *RentalHandler) Summary(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	summary, err := h.rentalSvc.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GET /api/v1/rentals/{id}
func (h *RentalHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, txID, ok := actorAndTransaction(w, r)
	if !ok {
		return
	}
	t, err := h.rentalSvc.GetTransaction(r.Context(), userID, txID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// POST /api/v1/rentals/{id}/return
func (h *RentalHandler) Return(w http.ResponseWriter, r *http.Request) {
	userID, txID, ok := actorAndTransaction(w, r)
	if !ok {
		return
	}
	t, err := h.rentalSvc.ReturnBook(r.Context(), userID, txID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// POST /api/v1/rentals/{id}/late-fee
func (h *RentalHandler) LateFee(w http.ResponseWriter, r *http.Request) {
	userID, txID, ok := actorAndTransaction(w, r)
	if !ok {
		return
	}
	if _, err := h.rentalSvc.GetTransaction(r.Context(), userID, txID); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.rentalSvc.CalculateLateFee(r.Context(), txID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// POST /api/v1/rentals/{id}/pay
func (h *RentalHandler) Pay(w http.ResponseWriter, r *http.Request) {
	userID, txID, ok := actorAndTransaction(w, r)
	if !ok {
		return
	}
	t, err := h.rentalSvc.PayFees(r.Context(), userID, txID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func actorAndTransaction(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return 0, 0, false
	}
	txID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return 0, 0, false
	}
	return userID, txID, true
}

func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if isAdmin(r.Context()) {
		return true
	}
	writeError(w, r, fmt.Errorf("%w: administrators only", domain.ErrForbidden))
	return false
}

func transactionFilter(r *http.Request) (domain.TransactionFilter, error) {
	var (
		f   domain.TransactionFilter
		err error
	)
	if f.UserID, err = queryInt64(r, "user_id"); err != nil {
		return f, err
	}
	if f.BookID, err = queryInt64(r, "book_id"); err != nil {
		return f, err
	}
	if f.AuthorID, err = queryInt64(r, "author_id"); err != nil {
		return f, err
	}
	switch status := r.URL.Query().Get("status"); status {
	case "":
	case "open":
		f.OpenOnly = true
	case "closed":
		f.ClosedOnly = true
	default:
		return f, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}
	if f.CreatedFrom, err = queryTime(r, "from"); err != nil {
		return f, err
	}
	if f.CreatedTo, err = queryTime(r, "to"); err != nil {
		return f, err
	}
	return f, nil
}

func queryTime(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC 3339, got %q", domain.ErrInvalidInput, name, raw)
	}
	return &t, nil
}
