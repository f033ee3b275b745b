package repository

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/venmo-service/internal/model"
)

func newUser(t *testing.T, r *MemoryRepository, username string, balance int64) int64 {
	t.Helper()

	id, err := r.CreateUser(context.Background(), model.NewUser{
		Name:         username,
		Username:     username,
		PasswordHash: "hash-" + username,
		Balance:      balance,
	})
	require.NoError(t, err)
	return id
}

func TestMemory_CreateUserDuplicate(t *testing.T) {
	r := NewMemoryRepository()
	newUser(t, r, "alice", 0)

	_, err := r.CreateUser(context.Background(), model.NewUser{Username: "alice"})
	assert.ErrorIs(t, err, model.ErrUserExists)
}

func TestMemory_InTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	alice := newUser(t, r, "alice", 100)
	bob := newUser(t, r, "bob", 0)

	boom := errors.New("boom")
	err := r.InTx(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.ApplyBalanceDelta(ctx, alice, -50))
		require.NoError(t, tx.ApplyBalanceDelta(ctx, bob, 50))
		return boom
	})
	require.ErrorIs(t, err, boom)

	a, err := r.GetUser(ctx, alice)
	require.NoError(t, err)
	b, err := r.GetUser(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(100), a.Balance)
	assert.Equal(t, int64(0), b.Balance)
}

func TestMemory_ApplyBalanceDeltaRejectsOverdraft(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	alice := newUser(t, r, "alice", 10)

	err := r.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.ApplyBalanceDelta(ctx, alice, -11)
	})
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)
}

func TestMemory_SetStatusIsConditional(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	alice := newUser(t, r, "alice", 10)
	bob := newUser(t, r, "bob", 0)

	var id int64
	require.NoError(t, r.InTx(ctx, func(ctx context.Context, tx Tx) error {
		tr := &model.Transaction{SenderID: alice, ReceiverID: bob, Amount: 5, Status: model.StatusUnset}
		if err := tx.CreateTransaction(ctx, tr); err != nil {
			return err
		}
		id = tr.ID
		assert.Nil(t, tr.ResolvedAt)
		return nil
	}))

	require.NoError(t, r.InTx(ctx, func(ctx context.Context, tx Tx) error {
		tr, err := tx.SetStatus(ctx, id, model.StatusUnset, model.StatusDenied)
		if err != nil {
			return err
		}
		assert.NotNil(t, tr.ResolvedAt)
		return nil
	}))

	err := r.InTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.SetStatus(ctx, id, model.StatusUnset, model.StatusAccepted)
		return err
	})
	assert.ErrorIs(t, err, model.ErrConflict)

	tr, err := r.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDenied, tr.Status)
}

func TestMemory_LockUsersUnknown(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	alice := newUser(t, r, "alice", 10)

	err := r.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.LockUsers(ctx, alice, 999)
	})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemory_Friendships(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	alice := newUser(t, r, "alice", 0)
	bob := newUser(t, r, "bob", 0)
	carol := newUser(t, r, "carol", 0)

	require.NoError(t, r.CreateFriendship(ctx, alice, bob))
	assert.ErrorIs(t, r.CreateFriendship(ctx, bob, alice), model.ErrFriendshipExists)
	assert.ErrorIs(t, r.CreateFriendship(ctx, alice, alice), model.ErrSameUser)
	assert.ErrorIs(t, r.CreateFriendship(ctx, alice, 999), model.ErrNotFound)

	friends, err := r.ListFriends(ctx, bob)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, alice, friends[0].ID)

	friends, err = r.ListFriends(ctx, carol)
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestMemory_FriendshipStoredBothWays(t *testing.T) {
	r := NewMemoryRepository()
	alice := newUser(t, r, "alice", 0)
	bob := newUser(t, r, "bob", 0)

	require.NoError(t, r.CreateFriendship(context.Background(), alice, bob))

	forward, ok := r.state.friendships[friendKey{userID: alice, friendID: bob}]
	require.True(t, ok)
	backward, ok := r.state.friendships[friendKey{userID: bob, friendID: alice}]
	require.True(t, ok)

	assert.Equal(t, model.Friendship{UserID: alice, FriendID: bob, CreatedAt: forward.CreatedAt}, forward)
	assert.Equal(t, model.Friendship{UserID: bob, FriendID: alice, CreatedAt: forward.CreatedAt}, backward)
	assert.False(t, forward.CreatedAt.IsZero())
}

func TestMemory_ApplyBalanceDeltaOverflow(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	rich := newUser(t, r, "rich", math.MaxInt64-5)

	err := r.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.ApplyBalanceDelta(ctx, rich, 10)
	})
	assert.ErrorIs(t, err, model.ErrBalanceOverflow)

	require.NoError(t, r.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.ApplyBalanceDelta(ctx, rich, 5)
	}))

	u, err := r.GetUser(ctx, rich)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), u.Balance)
}

func TestMemory_DeleteUser(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	alice := newUser(t, r, "alice", 10)
	bob := newUser(t, r, "bob", 0)
	carol := newUser(t, r, "carol", 0)

	require.NoError(t, r.CreateFriendship(ctx, carol, bob))
	require.NoError(t, r.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateTransaction(ctx, &model.Transaction{
			SenderID: alice, ReceiverID: bob, Amount: 1, Status: model.StatusUnset,
		})
	}))

	assert.ErrorIs(t, r.DeleteUser(ctx, alice), model.ErrHasHistory)
	require.NoError(t, r.DeleteUser(ctx, carol))
	assert.ErrorIs(t, r.DeleteUser(ctx, carol), model.ErrNotFound)

	friends, err := r.ListFriends(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestMemory_ListTransactionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	alice := newUser(t, r, "alice", 10)
	bob := newUser(t, r, "bob", 0)
	carol := newUser(t, r, "carol", 0)

	for _, receiver := range []int64{bob, carol, bob} {
		require.NoError(t, r.InTx(ctx, func(ctx context.Context, tx Tx) error {
			return tx.CreateTransaction(ctx, &model.Transaction{
				SenderID: alice, ReceiverID: receiver, Amount: 1, Status: model.StatusAccepted,
			})
		}))
	}

	all, err := r.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(3), all[0].ID)
	assert.NotNil(t, all[0].ResolvedAt)

	forCarol, err := r.ListTransactionsByUser(ctx, carol)
	require.NoError(t, err)
	require.Len(t, forCarol, 1)
	assert.Equal(t, int64(2), forCarol[0].ID)
}
