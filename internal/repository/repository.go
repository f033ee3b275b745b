// Package repository содержит реализации хранилища пользователей, транзакций и дружб.
package repository

import (
	"context"
	"slices"

	"github.com/mmeshcher/venmo-service/internal/model"
)

// Tx описывает единицу работы с хранилищем. Все изменения внутри одной
// единицы работы применяются атомарно либо не применяются вовсе.
type Tx interface {
	// UserByID возвращает пользователя или model.ErrNotFound.
	UserByID(ctx context.Context, id int64) (*model.User, error)
	// UserByIDAndCredential возвращает пользователя с совпадающим хешем пароля или model.ErrNotFound.
	UserByIDAndCredential(ctx context.Context, id int64, passwordHash string) (*model.User, error)
	// LockUsers блокирует строки пользователей в порядке возрастания идентификаторов.
	LockUsers(ctx context.Context, ids ...int64) error
	// ApplyBalanceDelta изменяет баланс; отрицательный итог даёт model.ErrInsufficientFunds.
	ApplyBalanceDelta(ctx context.Context, id int64, delta int64) error
	// CreateTransaction сохраняет транзакцию и заполняет ID, CreatedAt и ResolvedAt.
	CreateTransaction(ctx context.Context, t *model.Transaction) error
	// LockTransaction возвращает транзакцию, блокируя её до конца единицы работы.
	LockTransaction(ctx context.Context, id int64) (*model.Transaction, error)
	// SetStatus меняет статус, только если текущий равен expected; иначе model.ErrConflict.
	SetStatus(ctx context.Context, id int64, expected, next model.TransactionStatus) (*model.Transaction, error)
}

// TxFunc выполняется внутри единицы работы.
type TxFunc func(ctx context.Context, tx Tx) error

func uniqueSorted(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	res := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		res = append(res, id)
	}
	slices.Sort(res)
	return res
}
