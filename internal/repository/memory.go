package repository

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/mmeshcher/venmo-service/internal/model"
)

type friendKey struct {
	userID   int64
	friendID int64
}

type memoryState struct {
	users        map[int64]model.User
	transactions map[int64]model.Transaction
	friendships  map[friendKey]model.Friendship
	nextUserID   int64
	nextTxID     int64
}

func (s *memoryState) clone() *memoryState {
	return &memoryState{
		users:        maps.Clone(s.users),
		transactions: maps.Clone(s.transactions),
		friendships:  maps.Clone(s.friendships),
		nextUserID:   s.nextUserID,
		nextTxID:     s.nextTxID,
	}
}

// MemoryRepository хранит данные в памяти процесса. Используется, когда адрес БД
// не задан, и в тестах. Единицы работы сериализуются мьютексом, изменения
// применяются к копии состояния и публикуются только при успехе.
type MemoryRepository struct {
	mu    sync.Mutex
	state *memoryState
	now   func() time.Time
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		state: &memoryState{
			users:        make(map[int64]model.User),
			transactions: make(map[int64]model.Transaction),
			friendships:  make(map[friendKey]model.Friendship),
		},
		now: time.Now,
	}
}

// Close ничего не делает.
func (r *MemoryRepository) Close() error {
	return nil
}

// InTx выполняет fn над копией состояния и применяет её, если fn не вернула ошибку.
func (r *MemoryRepository) InTx(ctx context.Context, fn TxFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := r.state.clone()
	if err := fn(ctx, &memoryTx{state: work, now: r.now}); err != nil {
		return err
	}

	r.state = work
	return nil
}

// CreateUser создаёт нового пользователя.
func (r *MemoryRepository) CreateUser(_ context.Context, u model.NewUser) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u.Balance < 0 {
		return 0, model.ErrInvalidAmount
	}

	for _, existing := range r.state.users {
		if existing.Username == u.Username {
			return 0, fmt.Errorf("%w: %s", model.ErrUserExists, u.Username)
		}
	}

	r.state.nextUserID++
	id := r.state.nextUserID
	r.state.users[id] = model.User{
		ID:           id,
		Name:         u.Name,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Balance:      u.Balance,
		Email:        u.Email,
		CreatedAt:    r.now(),
	}
	return id, nil
}

// GetUser возвращает пользователя по идентификатору.
func (r *MemoryRepository) GetUser(_ context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.state.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &u, nil
}

// GetUserByUsername возвращает пользователя по имени пользователя.
func (r *MemoryRepository) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.state.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, model.ErrNotFound
}

// ListUsers возвращает всех пользователей в порядке идентификаторов.
func (r *MemoryRepository) ListUsers(_ context.Context) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return sortedUsers(r.state.users, func(model.User) bool { return true }), nil
}

// UpdateEmail меняет адрес для уведомлений.
func (r *MemoryRepository) UpdateEmail(_ context.Context, id int64, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.state.users[id]
	if !ok {
		return model.ErrNotFound
	}
	u.Email = email
	r.state.users[id] = u
	return nil
}

// DeleteUser удаляет пользователя вместе с его дружбами.
func (r *MemoryRepository) DeleteUser(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.state.users[id]; !ok {
		return model.ErrNotFound
	}

	for _, tr := range r.state.transactions {
		if tr.SenderID == id || tr.ReceiverID == id {
			return model.ErrHasHistory
		}
	}

	for k := range r.state.friendships {
		if k.userID == id || k.friendID == id {
			delete(r.state.friendships, k)
		}
	}
	delete(r.state.users, id)
	return nil
}

// GetTransaction возвращает транзакцию по идентификатору.
func (r *MemoryRepository) GetTransaction(_ context.Context, id int64) (*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tr, ok := r.state.transactions[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &tr, nil
}

// ListTransactions возвращает все транзакции, новые первыми.
func (r *MemoryRepository) ListTransactions(_ context.Context) ([]model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return sortedTransactions(r.state.transactions, func(model.Transaction) bool { return true }), nil
}

// ListTransactionsByUser возвращает транзакции, в которых участвует пользователь.
func (r *MemoryRepository) ListTransactionsByUser(_ context.Context, userID int64) ([]model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return sortedTransactions(r.state.transactions, func(tr model.Transaction) bool {
		return tr.SenderID == userID || tr.ReceiverID == userID
	}), nil
}

// CreateFriendship создаёт пару записей (a, b) и (b, a).
func (r *MemoryRepository) CreateFriendship(_ context.Context, userID, friendID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if userID == friendID {
		return model.ErrSameUser
	}
	if _, ok := r.state.users[userID]; !ok {
		return model.ErrNotFound
	}
	if _, ok := r.state.users[friendID]; !ok {
		return model.ErrNotFound
	}

	key := friendKey{userID: userID, friendID: friendID}
	if _, ok := r.state.friendships[key]; ok {
		return model.ErrFriendshipExists
	}

	now := r.now()
	r.state.friendships[key] = model.Friendship{UserID: userID, FriendID: friendID, CreatedAt: now}
	r.state.friendships[friendKey{userID: friendID, friendID: userID}] = model.Friendship{UserID: friendID, FriendID: userID, CreatedAt: now}
	return nil
}

// ListFriends возвращает друзей пользователя.
func (r *MemoryRepository) ListFriends(_ context.Context, userID int64) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return sortedUsers(r.state.users, func(u model.User) bool {
		_, ok := r.state.friendships[friendKey{userID: userID, friendID: u.ID}]
		return ok
	}), nil
}

func sortedUsers(users map[int64]model.User, keep func(model.User) bool) []model.User {
	var res []model.User
	for _, id := range slices.Sorted(maps.Keys(users)) {
		if u := users[id]; keep(u) {
			res = append(res, u)
		}
	}
	return res
}

func sortedTransactions(txs map[int64]model.Transaction, keep func(model.Transaction) bool) []model.Transaction {
	var res []model.Transaction
	for _, id := range slices.Sorted(maps.Keys(txs)) {
		if tr := txs[id]; keep(tr) {
			res = append(res, tr)
		}
	}
	slices.Reverse(res)
	return res
}

type memoryTx struct {
	state *memoryState
	now   func() time.Time
}

func (t *memoryTx) UserByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := t.state.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &u, nil
}

func (t *memoryTx) UserByIDAndCredential(_ context.Context, id int64, passwordHash string) (*model.User, error) {
	u, ok := t.state.users[id]
	if !ok || u.PasswordHash != passwordHash {
		return nil, model.ErrNotFound
	}
	return &u, nil
}

func (t *memoryTx) LockUsers(_ context.Context, ids ...int64) error {
	for _, id := range uniqueSorted(ids) {
		if _, ok := t.state.users[id]; !ok {
			return model.ErrNotFound
		}
	}
	return nil
}

func (t *memoryTx) ApplyBalanceDelta(_ context.Context, id int64, delta int64) error {
	u, ok := t.state.users[id]
	if !ok {
		return model.ErrNotFound
	}
	if delta > 0 && u.Balance > math.MaxInt64-delta {
		return model.ErrBalanceOverflow
	}
	if u.Balance+delta < 0 {
		return model.ErrInsufficientFunds
	}
	u.Balance += delta
	t.state.users[id] = u
	return nil
}

func (t *memoryTx) CreateTransaction(_ context.Context, tr *model.Transaction) error {
	if _, ok := t.state.users[tr.SenderID]; !ok {
		return model.ErrNotFound
	}
	if _, ok := t.state.users[tr.ReceiverID]; !ok {
		return model.ErrNotFound
	}

	t.state.nextTxID++
	tr.ID = t.state.nextTxID
	tr.CreatedAt = t.now()
	tr.ResolvedAt = nil
	if tr.Status.IsTerminal() {
		resolvedAt := tr.CreatedAt
		tr.ResolvedAt = &resolvedAt
	}

	t.state.transactions[tr.ID] = *tr
	return nil
}

func (t *memoryTx) LockTransaction(_ context.Context, id int64) (*model.Transaction, error) {
	tr, ok := t.state.transactions[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &tr, nil
}

func (t *memoryTx) SetStatus(_ context.Context, id int64, expected, next model.TransactionStatus) (*model.Transaction, error) {
	tr, ok := t.state.transactions[id]
	if !ok || tr.Status != expected {
		return nil, model.ErrConflict
	}

	resolvedAt := t.now()
	tr.Status = next
	tr.ResolvedAt = &resolvedAt
	t.state.transactions[id] = tr
	return &tr, nil
}
