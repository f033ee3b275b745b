// Package handler содержит HTTP-обработчики API сервиса переводов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/venmo-service/internal/middleware"
	"github.com/mmeshcher/venmo-service/internal/model"
	"github.com/mmeshcher/venmo-service/internal/payment"
	"github.com/mmeshcher/venmo-service/internal/service"
	"github.com/mmeshcher/venmo-service/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, p service.RegisterParams) (*model.User, error)
	AuthenticateUser(ctx context.Context, username, password string) (int64, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateEmail(ctx context.Context, userID int64, password, email string) (*model.User, error)
	DeleteUser(ctx context.Context, userID int64, password string) error
	AddFriend(ctx context.Context, userID, friendID int64) error
	ListFriends(ctx context.Context, userID int64) ([]model.User, error)
	GetTransaction(ctx context.Context, id int64) (*model.Transaction, error)
	ListTransactions(ctx context.Context) ([]model.Transaction, error)
	ListUserTransactions(ctx context.Context, userID int64) ([]model.Transaction, error)
	Send(ctx context.Context, p payment.SendParams) (*model.Transaction, error)
	RequestPayment(ctx context.Context, p payment.RequestParams) (*model.Transaction, error)
	ResolveRequest(ctx context.Context, p payment.ResolveParams) (*model.Transaction, error)
}

// Handler реализует HTTP-обработчики API сервиса переводов.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	rateLimiter    *middleware.RateLimiter
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// rateLimiter может быть nil, тогда ограничение частоты не применяется.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, rateLimiter *middleware.RateLimiter) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		rateLimiter:    rateLimiter,
	}
}

type signupRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Balance  int64  `json:"balance"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type sendRequest struct {
	ReceiverID int64  `json:"receiver_id"`
	Amount     int64  `json:"amount"`
	Message    string `json:"message"`
	Password   string `json:"password"`
}

type paymentRequest struct {
	SenderID   int64  `json:"sender_id"`
	ReceiverID int64  `json:"receiver_id"`
	Amount     int64  `json:"amount"`
	Message    string `json:"message"`
	Accepted   bool   `json:"accepted"`
	Password   string `json:"password"`
}

type resolveRequest struct {
	Accepted bool   `json:"accepted"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
}

type accountResponse struct {
	userResponse
	Email   string `json:"email,omitempty"`
	Balance int64  `json:"balance"`
}

type transactionResponse struct {
	ID         int64   `json:"id"`
	CreatedAt  string  `json:"created_at"`
	SenderID   int64   `json:"sender_id"`
	ReceiverID int64   `json:"receiver_id"`
	Amount     int64   `json:"amount"`
	Message    string  `json:"message,omitempty"`
	Status     string  `json:"status"`
	ResolvedAt *string `json:"resolved_at,omitempty"`
}

func toUserResponse(u model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

func toAccountResponse(u *model.User) accountResponse {
	return accountResponse{
		userResponse: toUserResponse(*u),
		Email:        u.Email,
		Balance:      u.Balance,
	}
}

func toUserResponses(users []model.User) []userResponse {
	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}
	return resp
}

func toTransactionResponse(tr *model.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:         tr.ID,
		CreatedAt:  tr.CreatedAt.Format(time.RFC3339),
		SenderID:   tr.SenderID,
		ReceiverID: tr.ReceiverID,
		Amount:     tr.Amount,
		Message:    tr.Message,
		Status:     string(tr.Status),
	}
	if tr.ResolvedAt != nil {
		resolved := tr.ResolvedAt.Format(time.RFC3339)
		resp.ResolvedAt = &resolved
	}
	return resp
}

func toTransactionResponses(txs []model.Transaction) []transactionResponse {
	resp := make([]transactionResponse, 0, len(txs))
	for i := range txs {
		resp = append(resp, toTransactionResponse(&txs[i]))
	}
	return resp
}

// Signup регистрирует пользователя и устанавливает cookie сессии.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Name == "" || req.Password == "" || !validation.IsValidUsername(req.Username) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.Email != "" && !validation.IsValidEmail(req.Email) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.RegisterUser(r.Context(), service.RegisterParams{
		Name:     req.Name,
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Balance:  req.Balance,
	})
	if err != nil {
		h.handleError(w, "signup", err, zap.String("username", req.Username))
		return
	}

	h.authMiddleware.SetAuthCookie(w, u.ID)
	h.writeJSON(w, http.StatusCreated, toAccountResponse(u))
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		h.handleError(w, "login", err, zap.String("username", req.Username))
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// ListUsers возвращает публичные данные всех пользователей.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.handleError(w, "list users", err)
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponses(users))
}

// GetUser возвращает публичный профиль пользователя.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	u, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.handleError(w, "get user", err, zap.Int64("userID", id))
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(*u))
}

// GetAccount возвращает данные текущего пользователя вместе с балансом.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	u, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		h.handleError(w, "get account", err, zap.Int64("userID", userID))
		return
	}

	h.writeJSON(w, http.StatusOK, toAccountResponse(u))
}

// UpdateEmail меняет адрес для уведомлений текущего пользователя.
func (h *Handler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Email != "" && !validation.IsValidEmail(req.Email) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.UpdateEmail(r.Context(), userID, req.Password, req.Email)
	if err != nil {
		h.handleError(w, "update email", err, zap.Int64("userID", userID))
		return
	}

	h.writeJSON(w, http.StatusOK, toAccountResponse(u))
}

// DeleteAccount удаляет текущего пользователя и сбрасывает сессию.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req passwordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.DeleteUser(r.Context(), userID, req.Password); err != nil {
		h.handleError(w, "delete account", err, zap.Int64("userID", userID))
		return
	}

	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// ListFriends возвращает друзей текущего пользователя.
func (h *Handler) ListFriends(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	friends, err := h.service.ListFriends(r.Context(), userID)
	if err != nil {
		h.handleError(w, "list friends", err, zap.Int64("userID", userID))
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponses(friends))
}

// AddFriend добавляет пользователя из пути в друзья текущего пользователя.
func (h *Handler) AddFriend(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	friendID, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.AddFriend(r.Context(), userID, friendID); err != nil {
		h.handleError(w, "add friend", err, zap.Int64("userID", userID), zap.Int64("friendID", friendID))
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// ListMyTransactions возвращает транзакции, в которых участвует текущий пользователь.
func (h *Handler) ListMyTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	txs, err := h.service.ListUserTransactions(r.Context(), userID)
	if err != nil {
		h.handleError(w, "list user transactions", err, zap.Int64("userID", userID))
		return
	}

	h.writeJSON(w, http.StatusOK, toTransactionResponses(txs))
}

// ListTransactions возвращает все транзакции.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.service.ListTransactions(r.Context())
	if err != nil {
		h.handleError(w, "list transactions", err)
		return
	}

	h.writeJSON(w, http.StatusOK, toTransactionResponses(txs))
}

// Send переводит средства от текущего пользователя.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req sendRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tr, err := h.service.Send(r.Context(), payment.SendParams{
		SenderID:   userID,
		ReceiverID: req.ReceiverID,
		Amount:     req.Amount,
		Message:    req.Message,
		Password:   req.Password,
	})
	if err != nil {
		h.handleError(w, "send", err, zap.Int64("senderID", userID), zap.Int64("receiverID", req.ReceiverID))
		return
	}

	h.writeJSON(w, http.StatusCreated, toTransactionResponse(tr))
}

// RequestPayment создаёт запрос на оплату. Текущий пользователь должен быть
// его участником, а для немедленного принятия плательщиком.
func (h *Handler) RequestPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req paymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if userID != req.SenderID && userID != req.ReceiverID {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	if req.Accepted && userID != req.SenderID {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	tr, err := h.service.RequestPayment(r.Context(), payment.RequestParams{
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Amount:     req.Amount,
		Message:    req.Message,
		AutoAccept: req.Accepted,
		Password:   req.Password,
	})
	if err != nil {
		h.handleError(w, "request payment", err, zap.Int64("senderID", req.SenderID), zap.Int64("receiverID", req.ReceiverID))
		return
	}

	h.writeJSON(w, http.StatusCreated, toTransactionResponse(tr))
}

// ResolveRequest принимает или отклоняет запрос на оплату. Решение доступно только плательщику.
func (h *Handler) ResolveRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req resolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	current, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		h.handleError(w, "resolve request", err, zap.Int64("transactionID", id))
		return
	}
	if current.SenderID != userID {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	tr, err := h.service.ResolveRequest(r.Context(), payment.ResolveParams{
		TransactionID: id,
		Accept:        req.Accepted,
		Password:      req.Password,
	})
	if err != nil {
		h.handleError(w, "resolve request", err, zap.Int64("transactionID", id))
		return
	}

	h.writeJSON(w, http.StatusOK, toTransactionResponse(tr))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, model.ErrInvalidAmount), errors.Is(err, model.ErrSameUser):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrAlreadyResolved),
		errors.Is(err, model.ErrConflict),
		errors.Is(err, model.ErrUserExists),
		errors.Is(err, model.ErrFriendshipExists),
		errors.Is(err, model.ErrHasHistory),
		errors.Is(err, model.ErrBalanceOverflow):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) handleError(w http.ResponseWriter, op string, err error, fields ...zap.Field) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(op+" error", append(fields, zap.Error(err))...)
		http.Error(w, http.StatusText(status), status)
		return
	}

	http.Error(w, err.Error(), status)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
