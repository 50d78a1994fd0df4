package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/finance-tracker/backend/internal/domain"
	"github.com/finance-tracker/backend/internal/middleware"
	"github.com/finance-tracker/backend/internal/usecase"
)

type Handler struct {
	authUsecase        *usecase.AuthUsecase
	transactionUsecase *usecase.TransactionUsecase
	insightsUsecase    *usecase.InsightsUsecase
}

func NewHandler(auth *usecase.AuthUsecase, transactions *usecase.TransactionUsecase, insights *usecase.InsightsUsecase) *Handler {
	return &Handler{
		authUsecase:        auth,
		transactionUsecase: transactions,
		insightsUsecase:    insights,
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

// Auth handlers

type googleLoginRequest struct {
	IDToken string `json:"idToken"`
}

type loginResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         *domain.User `json:"user"`
}

func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.authUsecase.Login(r.Context(), req.IDToken)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Authentication failed")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		User:         result.User,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	accessToken, err := h.authUsecase.Refresh(r.Context(), req.RefreshToken)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, refreshResponse{AccessToken: accessToken})
	case errors.Is(err, usecase.ErrInvalidOrExpiredToken),
		errors.Is(err, usecase.ErrRefreshTokenRevoked),
		errors.Is(err, usecase.ErrUserNotFound):
		writeMessage(w, http.StatusUnauthorized, "Invalid refresh token")
	default:
		writeMessage(w, http.StatusInternalServerError, "Failed to refresh token")
	}
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	// The refresh token is optional; an empty or absent body still logs out.
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := h.authUsecase.Revoke(r.Context(), req.RefreshToken); err != nil {
		writeMessage(w, http.StatusInternalServerError, "Failed to logout")
		return
	}
	writeMessage(w, http.StatusOK, "Logged out")
}

type profileResponse struct {
	User *domain.User `json:"user"`
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	user, err := h.authUsecase.GetUserByID(identity.UserID)
	if err != nil || user == nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{User: user})
}

// Transaction handlers

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	var in usecase.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, err := h.transactionUsecase.Create(identity.UserID, &in)
	if errors.Is(err, usecase.ErrInvalidTransaction) {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Failed to create transaction")
		return
	}

	writeJSON(w, http.StatusCreated, tx)
}

type transactionListResponse struct {
	Transactions []*domain.Transaction `json:"transactions"`
	Summary      *domain.Summary       `json:"summary"`
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	transactions, summary, err := h.transactionUsecase.List(identity.UserID, limit)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}
	if transactions == nil {
		transactions = []*domain.Transaction{}
	}

	writeJSON(w, http.StatusOK, transactionListResponse{Transactions: transactions, Summary: summary})
}

func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	var in usecase.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, err := h.transactionUsecase.Update(identity.UserID, id, &in)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, tx)
	case errors.Is(err, usecase.ErrTransactionNotFound):
		writeMessage(w, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, usecase.ErrInvalidTransaction):
		writeMessage(w, http.StatusBadRequest, err.Error())
	default:
		writeMessage(w, http.StatusInternalServerError, "Failed to update transaction")
	}
}

func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	err = h.transactionUsecase.Delete(identity.UserID, id)
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, "Transaction deleted successfully")
	case errors.Is(err, usecase.ErrTransactionNotFound):
		writeMessage(w, http.StatusNotFound, "Transaction not found")
	default:
		writeMessage(w, http.StatusInternalServerError, "Failed to delete transaction")
	}
}

func (h *Handler) TransactionStats(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "month"
	}

	stats, err := h.transactionUsecase.Stats(identity.UserID, period)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Failed to compute statistics")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Analytics handlers

func (h *Handler) Insights(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	periodDays, _ := strconv.Atoi(r.URL.Query().Get("period"))

	report, err := h.insightsUsecase.Generate(identity.UserID, periodDays)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Failed to generate insights")
		return
	}

	writeJSON(w, http.StatusOK, report)
}
