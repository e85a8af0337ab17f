package http

import (
	"context"
	"net/http"
	"time"

	"booksphere-backend/internal/security"

	"github.com/gorilla/mux"
)

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	Auth          *AuthHandler
	Books         *BookHandler
	Rentals       *RentalHandler
	Notifications *NotificationHandler
	Store         Pinger
}

// NewRouter registers every route under its security name (see config.EndpointSecurityConfig).
// Literal paths are registered before their {id} siblings.
func NewRouter(h Handlers, tm security.TokenManager) *mux.Router {
	router := mux.NewRouter()
	router.Use(LoggingMiddleware, NewAuthMiddleware(tm).Handler)

	router.HandleFunc("/healthz", healthHandler(h.Store)).Methods(http.MethodGet).Name("health")

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", h.Auth.Register).Methods(http.MethodPost).Name("auth.register")
	api.HandleFunc("/auth/login", h.Auth.Login).Methods(http.MethodPost).Name("auth.login")
	api.HandleFunc("/auth/refresh", h.Auth.Refresh).Methods(http.MethodPost).Name("auth.refresh")
	api.HandleFunc("/users/me", h.Auth.Me).Methods(http.MethodGet).Name("users.me")

	api.HandleFunc("/books", h.Books.List).Methods(http.MethodGet).Name("books.list")
	api.HandleFunc("/books", h.Books.Create).Methods(http.MethodPost).Name("books.create")
	api.HandleFunc("/books/popular", h.Books.Popular).Methods(http.MethodGet).Name("books.popular")
	api.HandleFunc("/books/{id:[0-9]+}", h.Books.Get).Methods(http.MethodGet).Name("books.get")
	api.HandleFunc("/books/{id:[0-9]+}/copies", h.Books.SetCopies).Methods(http.MethodPut).Name("books.copies")
	api.HandleFunc("/books/{id:[0-9]+}/price", h.Books.SetPrice).Methods(http.MethodPut).Name("books.price")
	api.HandleFunc("/books/{id:[0-9]+}/active", h.Books.SetActive).Methods(http.MethodPut).Name("books.active")
	api.HandleFunc("/books/{id:[0-9]+}/audit", h.Books.Audit).Methods(http.MethodGet).Name("books.audit")
	api.HandleFunc("/books/{id:[0-9]+}/rentals/active", h.Books.ActiveRentals).Methods(http.MethodGet).Name("books.rentals")

	api.HandleFunc("/rentals", h.Rentals.Issue).Methods(http.MethodPost).Name("rentals.issue")
	api.HandleFunc("/rentals", h.Rentals.List).Methods(http.MethodGet).Name("rentals.list")
	api.HandleFunc("/rentals/active", h.Rentals.Active).Methods(http.MethodGet).Name("rentals.active")
	api.HandleFunc("/rentals/overdue", h.Rentals.Overdue).Methods(http.MethodGet).Name("rentals.overdue")
	api.HandleFunc("/rentals/summary", h.Rentals.Summary).Methods(http.MethodGet).Name("rentals.summary")
	api.HandleFunc("/rentals/{id:[0-9]+}", h.Rentals.Get).Methods(http.MethodGet).Name("rentals.get")
	api.HandleFunc("/rentals/{id:[0-9]+}/return", h.Rentals.Return).Methods(http.MethodPost).Name("rentals.return")
	api.HandleFunc("/rentals/{id:[0-9]+}/late-fee", h.Rentals.LateFee).Methods(http.MethodPost).Name("rentals.late_fee")
	api.HandleFunc("/rentals/{id:[0-9]+}/pay", h.Rentals.Pay).Methods(http.MethodPost).Name("rentals.pay")

	api.HandleFunc("/notifications", h.Notifications.List).Methods(http.MethodGet).Name("notifications.list")
	api.HandleFunc("/notifications/unread-count", h.Notifications.UnreadCount).Methods(http.MethodGet).Name("notifications.unread_count")
	api.HandleFunc("/notifications/read-all", h.Notifications.MarkAllRead).Methods(http.MethodPost).Name("notifications.read_all")
	api.HandleFunc("/notifications/{id:[0-9]+}/read", h.Notifications.MarkRead).Methods(http.MethodPost).Name("notifications.read")

	return router
}

func healthHandler(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
