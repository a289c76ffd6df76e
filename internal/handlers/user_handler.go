package handlers

import (
	"net/http"

	"github.com/bvabank/backend/internal/access"
	mW "github.com/bvabank/backend/internal/middleware"
	"github.com/bvabank/backend/internal/models"
	"github.com/bvabank/backend/internal/services"
	"github.com/go-chi/chi/v5"
)

type UserHandler struct {
	auth      *services.AuthService
	accounts  *services.AccountService
	ledger    *services.LedgerService
	queries   *services.QueryService
	validator *services.ValidationHelper
}

func NewUserHandler(auth *services.AuthService, accounts *services.AccountService, ledger *services.LedgerService, queries *services.QueryService) *UserHandler {
	return &UserHandler{
		auth:      auth,
		accounts:  accounts,
		ledger:    ledger,
		queries:   queries,
		validator: services.NewValidationHelper(),
	}
}

// UserRoutes mounts under /api/users.
func (h *UserHandler) UserRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(mW.Authenticate(h.auth))
		r.Use(mW.Require(access.ReadOwn))
		r.Get("/profile", h.Profile)
		r.Post("/logout", h.Logout)
	})
	return r
}

// TransactionRoutes mounts under /api/transactions.
func (h *UserHandler) TransactionRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(mW.Authenticate(h.auth))

	r.With(mW.Require(access.SelfAdjust)).Post("/", h.CreateTransaction)
	r.With(mW.Require(access.ReadOwn)).Get("/", h.ListTransactions)
	return r
}

// Login authenticates an account holder
// @Summary User login
// @Tags Users
// @Accept json
// @Produce json
// @Param request body services.LoginRequest true "User credentials"
// @Success 200 {object} services.AuthResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Router /users/login [post]
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.WriteError(w, err, false)
		return
	}

	resp, err := h.auth.UserLogin(r.Context(), req)
	if err != nil {
		services.WriteError(w, err, false)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Logout revokes the session token
// @Summary User logout
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MessageResponse
// @Router /users/logout [post]
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, _ := mW.ClaimsFromContext(r.Context())
	if err := h.auth.Logout(r.Context(), claims); err != nil {
		services.WriteError(w, err, false)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

// Profile returns the caller's own account
// @Summary User profile
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Account
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /users/profile [get]
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	principal := access.FromContext(r.Context())
	account, err := h.accounts.GetAccount(r.Context(), principal.AccountID)
	if err != nil {
		services.WriteError(w, err, false)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// CreateTransaction records the caller's own credit or debit
// @Summary Create own transaction
// @Tags Transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AdjustmentRequest true "Adjustment"
// @Success 201 {object} models.Adjustment
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /transactions [post]
func (h *UserHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.WriteError(w, err, false)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.WriteError(w, err, false)
		return
	}

	principal := access.FromContext(r.Context())
	_, adjustment, err := h.ledger.SelfAdjust(r.Context(), principal.AccountID, models.Kind(req.Type), req.Amount, req.Note)
	if err != nil {
		services.WriteError(w, err, false)
		return
	}
	writeJSON(w, http.StatusCreated, adjustment)
}

// ListTransactions returns the caller's own history newest first
// @Summary List own transactions
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.LedgerEntry
// @Router /transactions [get]
func (h *UserHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	principal := access.FromContext(r.Context())
	records, err := h.queries.ListTransactions(r.Context(), principal.AccountID)
	if err != nil {
		services.WriteError(w, err, false)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
