// Package ledger реализует единственный путь изменения балансов пользователей.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmeshcher/venmo-service/internal/model"
	"github.com/mmeshcher/venmo-service/internal/repository"
)

// TxRunner выполняет функцию внутри единицы работы хранилища.
type TxRunner interface {
	InTx(ctx context.Context, fn repository.TxFunc) error
}

// PasswordHasher превращает пароль в хеш, сравнимый с сохранённым.
type PasswordHasher interface {
	Hash(password string) string
}

// TransferParams описывает перевод между пользователями.
type TransferParams struct {
	SenderID   int64
	ReceiverID int64
	Amount     int64
	Password   string
}

// Result содержит состояние участников после перевода.
type Result struct {
	Sender   model.User
	Receiver model.User
}

// Ledger списывает и зачисляет средства, не допуская отрицательного баланса.
type Ledger struct {
	store  TxRunner
	hasher PasswordHasher
}

// New создаёт Ledger поверх хранилища.
func New(store TxRunner, hasher PasswordHasher) *Ledger {
	return &Ledger{
		store:  store,
		hasher: hasher,
	}
}

// Transfer выполняет перевод в собственной единице работы.
func (l *Ledger) Transfer(ctx context.Context, p TransferParams) (*Result, error) {
	var res *Result
	err := l.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		res, err = l.TransferTx(ctx, tx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// TransferTx выполняет перевод внутри переданной единицы работы.
//
// Порядок проверок: сумма и участники, затем пароль отправителя
// (неизвестный id и неверный пароль дают одну ошибку model.ErrUnauthorized),
// затем достаточность средств. Проверка и списание выполняются под
// блокировкой строк обоих пользователей.
func (l *Ledger) TransferTx(ctx context.Context, tx repository.Tx, p TransferParams) (*Result, error) {
	if p.Amount <= 0 {
		return nil, model.ErrInvalidAmount
	}
	if p.SenderID == p.ReceiverID {
		return nil, model.ErrSameUser
	}

	// Обе строки блокируются одним запросом; отсутствующего участника
	// определяем ниже, чтобы вернуть правильную ошибку.
	if err := tx.LockUsers(ctx, p.SenderID, p.ReceiverID); err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}

	sender, err := l.AuthorizeTx(ctx, tx, p.SenderID, p.Password)
	if err != nil {
		return nil, err
	}
	if _, err := tx.UserByID(ctx, p.ReceiverID); err != nil {
		return nil, fmt.Errorf("receiver %d: %w", p.ReceiverID, err)
	}

	if p.Amount > sender.Balance {
		return nil, model.ErrInsufficientFunds
	}

	if err := tx.ApplyBalanceDelta(ctx, p.SenderID, -p.Amount); err != nil {
		return nil, fmt.Errorf("debit sender: %w", err)
	}
	if err := tx.ApplyBalanceDelta(ctx, p.ReceiverID, p.Amount); err != nil {
		return nil, fmt.Errorf("credit receiver: %w", err)
	}

	senderAfter, err := tx.UserByID(ctx, p.SenderID)
	if err != nil {
		return nil, err
	}
	receiverAfter, err := tx.UserByID(ctx, p.ReceiverID)
	if err != nil {
		return nil, err
	}

	return &Result{Sender: *senderAfter, Receiver: *receiverAfter}, nil
}

// AuthorizeTx проверяет пароль пользователя внутри единицы работы.
func (l *Ledger) AuthorizeTx(ctx context.Context, tx repository.Tx, userID int64, password string) (*model.User, error) {
	u, err := tx.UserByIDAndCredential(ctx, userID, l.hasher.Hash(password))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrUnauthorized
		}
		return nil, err
	}
	return u, nil
}
