// Package service реализует бизнес-логику сервиса переводов, используемую HTTP-слоем.
package service

import (
	"context"
	"errors"

	"github.com/mmeshcher/venmo-service/internal/model"
	"github.com/mmeshcher/venmo-service/internal/payment"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, u model.NewUser) (int64, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateEmail(ctx context.Context, id int64, email string) error
	DeleteUser(ctx context.Context, id int64) error
	GetTransaction(ctx context.Context, id int64) (*model.Transaction, error)
	ListTransactions(ctx context.Context) ([]model.Transaction, error)
	ListTransactionsByUser(ctx context.Context, userID int64) ([]model.Transaction, error)
	CreateFriendship(ctx context.Context, userID, friendID int64) error
	ListFriends(ctx context.Context, userID int64) ([]model.User, error)
}

// Payments описывает операции перемещения средств.
type Payments interface {
	Send(ctx context.Context, p payment.SendParams) (*model.Transaction, error)
	RequestPayment(ctx context.Context, p payment.RequestParams) (*model.Transaction, error)
	Resolve(ctx context.Context, p payment.ResolveParams) (*model.Transaction, error)
}

// PasswordHasher хеширует и проверяет пароли.
type PasswordHasher interface {
	Hash(password string) string
	Verify(storedHash, password string) bool
}

// RegisterParams содержит данные для регистрации.
type RegisterParams struct {
	Name     string
	Username string
	Password string
	Email    string
	Balance  int64
}

// Service содержит бизнес-логику сервиса переводов.
type Service struct {
	repo     Repository
	payments Payments
	hasher   PasswordHasher
}

// NewService создаёт новый сервис.
func NewService(repo Repository, payments Payments, hasher PasswordHasher) *Service {
	return &Service{
		repo:     repo,
		payments: payments,
		hasher:   hasher,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, p RegisterParams) (*model.User, error) {
	if p.Balance < 0 {
		return nil, model.ErrInvalidAmount
	}

	id, err := s.repo.CreateUser(ctx, model.NewUser{
		Name:         p.Name,
		Username:     p.Username,
		PasswordHash: s.hasher.Hash(p.Password),
		Balance:      p.Balance,
		Email:        p.Email,
	})
	if err != nil {
		return nil, err
	}

	return s.repo.GetUser(ctx, id)
}

// AuthenticateUser проверяет имя пользователя и пароль и возвращает идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, username, password string) (int64, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return 0, model.ErrUnauthorized
		}
		return 0, err
	}

	if !s.hasher.Verify(u.PasswordHash, password) {
		return 0, model.ErrUnauthorized
	}

	return u.ID, nil
}

func (s *Service) authorize(ctx context.Context, userID int64, password string) error {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrUnauthorized
		}
		return err
	}

	if !s.hasher.Verify(u.PasswordHash, password) {
		return model.ErrUnauthorized
	}
	return nil
}

// GetUser возвращает пользователя по идентификатору.
func (s *Service) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetUser(ctx, id)
}

// ListUsers возвращает всех пользователей.
func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.repo.ListUsers(ctx)
}

// UpdateEmail меняет адрес для уведомлений после проверки пароля.
func (s *Service) UpdateEmail(ctx context.Context, userID int64, password, email string) (*model.User, error) {
	if err := s.authorize(ctx, userID, password); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateEmail(ctx, userID, email); err != nil {
		return nil, err
	}
	return s.repo.GetUser(ctx, userID)
}

// DeleteUser удаляет пользователя после проверки пароля.
func (s *Service) DeleteUser(ctx context.Context, userID int64, password string) error {
	if err := s.authorize(ctx, userID, password); err != nil {
		return err
	}
	return s.repo.DeleteUser(ctx, userID)
}

// AddFriend создаёт дружбу между пользователями.
func (s *Service) AddFriend(ctx context.Context, userID, friendID int64) error {
	return s.repo.CreateFriendship(ctx, userID, friendID)
}

// ListFriends возвращает друзей пользователя.
func (s *Service) ListFriends(ctx context.Context, userID int64) ([]model.User, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListFriends(ctx, userID)
}

// GetTransaction возвращает транзакцию по идентификатору.
func (s *Service) GetTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// ListTransactions возвращает все транзакции.
func (s *Service) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	return s.repo.ListTransactions(ctx)
}

// ListUserTransactions возвращает транзакции пользователя.
func (s *Service) ListUserTransactions(ctx context.Context, userID int64) ([]model.Transaction, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListTransactionsByUser(ctx, userID)
}

// Send выполняет прямой перевод.
func (s *Service) Send(ctx context.Context, p payment.SendParams) (*model.Transaction, error) {
	return s.payments.Send(ctx, p)
}

// RequestPayment создаёт запрос на оплату.
func (s *Service) RequestPayment(ctx context.Context, p payment.RequestParams) (*model.Transaction, error) {
	return s.payments.RequestPayment(ctx, p)
}

// ResolveRequest принимает или отклоняет запрос на оплату.
func (s *Service) ResolveRequest(ctx context.Context, p payment.ResolveParams) (*model.Transaction, error) {
	return s.payments.Resolve(ctx, p)
}
