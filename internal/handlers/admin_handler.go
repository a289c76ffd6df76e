package handlers

import (
	"fmt"
	"net/http"

	"github.com/bvabank/backend/internal/access"
	mW "github.com/bvabank/backend/internal/middleware"
	"github.com/bvabank/backend/internal/models"
	"github.com/bvabank/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// AmountRequest carries a deposit or withdrawal amount
// @Description Deposit or withdrawal request
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount" swaggertype:"string" example:"40.00"`
}

// AdjustmentRequest carries a credit or debit with its note
// @Description Manual credit or debit request
type AdjustmentRequest struct {
	Type   string          `json:"type" validate:"required,oneof=credit debit" example:"credit"`
	Amount decimal.Decimal `json:"amount" swaggertype:"string" example:"20.00"`
	Note   string          `json:"note" validate:"required" example:"refund"`
}

// AccountResponse wraps an account with an outcome message
type AccountResponse struct {
	Message string          `json:"message" example:"User created"`
	User    *models.Account `json:"user"`
}

// MutationResponse reports a balance mutation with the account and the recorded entry
type MutationResponse struct {
	Message     string          `json:"message" example:"Deposit successful"`
	User        *models.Account `json:"user"`
	Transaction models.Record   `json:"transaction"`
}

type AdminHandler struct {
	auth      *services.AuthService
	accounts  *services.AccountService
	ledger    *services.LedgerService
	queries   *services.QueryService
	validator *services.ValidationHelper
}

func NewAdminHandler(auth *services.AuthService, accounts *services.AccountService, ledger *services.LedgerService, queries *services.QueryService) *AdminHandler {
	return &AdminHandler{
		auth:      auth,
		accounts:  accounts,
		ledger:    ledger,
		queries:   queries,
		validator: services.NewValidationHelper(),
	}
}

// Routes mounts under /api/admin. Login sits outside the token check so a stale
// Authorization header never blocks it.
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(mW.Authenticate(h.auth))
		h.protectedRoutes(r)
	})
	return r
}

func (h *AdminHandler) protectedRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(mW.Require(access.ReadAll))
		r.Get("/statistics", h.Statistics)
		r.Get("/users", h.ListUsers)
		r.Get("/users/{id}/transactions", h.ListUserTransactions)
		r.Get("/transactions", h.ListTransactions)
		r.Post("/logout", h.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(mW.Require(access.ManageAccounts))
		r.Post("/users", h.CreateUser)
		r.Put("/users/{id}", h.UpdateUser)
		r.Put("/users/{id}/block-toggle", h.ToggleBlock)
		r.Put("/users/{id}/account-manager", h.AssignManager)
		r.Delete("/users/{id}", h.DeleteUser)
	})

	r.Group(func(r chi.Router) {
		r.Use(mW.Require(access.MutateBalances))
		r.Post("/users/{id}/deposit", h.Deposit)
		r.Post("/users/{id}/withdraw", h.Withdraw)
		r.Post("/users/{id}/transactions", h.AddTransaction)
	})

	r.Group(func(r chi.Router) {
		r.Use(mW.Require(access.ReviewTransactions))
		r.Put("/transactions/{id}/approve", h.Approve)
		r.Put("/transactions/{id}/reject", h.Reject)
	})
}

// Login authenticates the administrator
// @Summary Admin login
// @Description Exchange the administrator credential pair for an admin token
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body services.LoginRequest true "Admin credentials"
// @Success 200 {object} services.AuthResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 429 {object} services.ErrorResponse
// @Router /admin/login [post]
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.WriteError(w, err, false)
		return
	}

	resp, err := h.auth.AdminLogin(r.Context(), req)
	if err != nil {
		services.WriteError(w, err, false)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Logout revokes the admin token
// @Summary Admin logout
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MessageResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /admin/logout [post]
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, _ := mW.ClaimsFromContext(r.Context())
	if err := h.auth.Logout(r.Context(), claims); err != nil {
		services.WriteError(w, err, true)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

// Statistics returns dashboard totals
// @Summary Dashboard statistics
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Statistics
// @Failure 401 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Router /admin/statistics [get]
func (h *AdminHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queries.Statistics(r.Context())
	if err != nil {
		services.WriteError(w, err, true)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// CreateUser registers a new account holder
// @Summary Create user
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.CreateAccountRequest true "New user"
// @Success 201 {object} AccountResponse
// @Failure 400 {object} services.ErrorResponse
// @Router /admin/users [post]
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req services.CreateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.WriteError(w, err, true)
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(), req)
	if err != nil {
		services.WriteError(w, err, true)
		return
	}
	writeJSON(w, http.StatusCreated, AccountResponse{Message: "User created", User: account})
}

// ListUsers returns every live account
// @Summary List users
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Account
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.ListAccounts(r.Context())
	if err != nil {
		services.WriteError(w, err, true)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// UpdateUser renames an account or sets its balance
// @Summary Update user
// @Description A balance change is recorded as a credit or debit adjustment for the difference
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body services.UpdateAccountRequest true "Fields to change"
// @Success 200 {object} models.Account
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/users/{id} [put]
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req services.UpdateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.WriteError(w, err, true)
		return
	}

	account, err := h.accounts.UpdateAccount(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		services.WriteError(w, err, true)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// ToggleBlock blocks or unblocks an account
// @Summary Toggle block
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} AccountResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/users/{id}/block-toggle [put]
func (h *AdminHandler) ToggleBlock(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.ToggleBlock(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		services.WriteError(w, err, true)
		return
	}

	message := "User unblocked"
	if account.IsBlocked {
		message = "User blocked"
	}
	writeJSON(w, http.StatusOK, AccountResponse{Message: message, User: account})
}

// AssignManager sets the account manager
// @Summary Assign account manager
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body services.ManagerRequest true "Manager"
// @Success 200 {object} models.Account
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/users/{id}/account-manager [put]
func (h *AdminHandler) AssignManager(w http.ResponseWriter, r *http.Request) {
	var req services.ManagerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.WriteError(w, err, true)
		return
	}

	account, err := h.accounts.AssignManager(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		services.WriteError(w, err, true)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// DeleteUser removes an account; its transactions are kept
// @Summary Delete user
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.DeleteAccount(r.Context(), chi.URLParam(r, "id")); err != nil {
		services.WriteError(w, err, true)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "User deleted"})
}

// Deposit credits an account
// @Summary Deposit
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body AmountRequest true "Amount"
// @Success 200 {object} MutationResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/users/{id}/deposit [post]
func (h *AdminHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.WriteError(w, err, true)
		return
	}

	account, entry, err := h.ledger.Deposit(r.Context(), chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		services.WriteError(w, err, true)
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{Message: "Deposit successful", User: account, Transaction: entry})
}

// Withdraw debits an account
// @Summary Withdraw
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body AmountRequest true "Amount"
// @Success 200 {object} MutationResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /admin/users/{id}/withdraw [post]
func (h *AdminHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.WriteError(w, err, true)
		return
	}

	account, entry, err := h.ledger.Withdraw(r.Context(), chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		services.WriteError(w, err, true)
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{Message: "Withdrawal successful", User: account, Transaction: entry})
}

// AddTransaction applies a manual credit or debit
// @Summary Manual transaction
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body AdjustmentRequest true "Adjustment"
// @Success 201 {object} MutationResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /admin/users/{id}/transactions [post]
func (h *AdminHandler) AddTransaction(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.WriteError(w, err, true)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.WriteError(w, err, true)
		return
	}

	account, adjustment, err := h.ledger.ManualAdjust(r.Context(), chi.URLParam(r, "id"), models.Kind(req.Type), req.Amount, req.Note)
	if err != nil {
		services.WriteError(w, err, true)
		return
	}
	writeJSON(w, http.StatusCreated, MutationResponse{Message: "Transaction added successfully.", User: account, Transaction: adjustment})
}

// ListUserTransactions returns one account's history, including deleted accounts
// @Summary User transaction history
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {array} models.LedgerEntry
// @Router /admin/users/{id}/transactions [get]
func (h *AdminHandler) ListUserTransactions(w http.ResponseWriter, r *http.Request) {
	records, err := h.queries.ListTransactions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		services.WriteError(w, err, true)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// ListTransactions returns every transaction newest first
// @Summary List transactions
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.LedgerEntry
// @Router /admin/transactions [get]
func (h *AdminHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	records, err := h.queries.ListAllTransactions(r.Context())
	if err != nil {
		services.WriteError(w, err, true)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// Approve marks a deposit or withdrawal approved
// @Summary Approve transaction
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} models.LedgerEntry
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/transactions/{id}/approve [put]
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, models.DecisionApprove)
}

// Reject marks a deposit or withdrawal rejected; the balance is not changed
// @Summary Reject transaction
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} models.LedgerEntry
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/transactions/{id}/reject [put]
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, models.DecisionReject)
}

func (h *AdminHandler) review(w http.ResponseWriter, r *http.Request, decision models.Decision) {
	id := chi.URLParam(r, "id")
	if id == "" {
		services.WriteError(w, fmt.Errorf("%w: transaction id required", models.ErrValidation), true)
		return
	}

	entry, err := h.ledger.ReviewTransaction(r.Context(), id, decision)
	if err != nil {
		services.WriteError(w, err, true)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
