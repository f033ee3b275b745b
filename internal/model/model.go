// Package model содержит доменные сущности сервиса переводов.
package model

import "time"

// User представляет зарегистрированного пользователя сервиса.
type User struct {
	ID           int64
	Name         string
	Username     string
	PasswordHash string
	Balance      int64
	Email        string
	CreatedAt    time.Time
}

// TransactionStatus описывает состояние запроса на оплату.
type TransactionStatus string

const (
	StatusUnset    TransactionStatus = "unset"
	StatusAccepted TransactionStatus = "accepted"
	StatusDenied   TransactionStatus = "denied"
)

// IsTerminal сообщает, что статус больше не может быть изменён.
func (s TransactionStatus) IsTerminal() bool {
	return s == StatusAccepted || s == StatusDenied
}

// Transaction описывает прямой перевод или запрос на оплату.
// SenderID всегда плательщик, ReceiverID получатель.
type Transaction struct {
	ID         int64
	CreatedAt  time.Time
	SenderID   int64
	ReceiverID int64
	Amount     int64
	Message    string
	Status     TransactionStatus
	ResolvedAt *time.Time
}

// Friendship описывает дружбу между двумя пользователями.
type Friendship struct {
	UserID    int64
	FriendID  int64
	CreatedAt time.Time
}

// NewUser содержит данные для регистрации пользователя.
type NewUser struct {
	Name         string
	Username     string
	PasswordHash string
	Balance      int64
	Email        string
}
