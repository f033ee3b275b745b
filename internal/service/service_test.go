package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/venmo-service/internal/credential"
	"github.com/mmeshcher/venmo-service/internal/ledger"
	"github.com/mmeshcher/venmo-service/internal/model"
	"github.com/mmeshcher/venmo-service/internal/payment"
	"github.com/mmeshcher/venmo-service/internal/repository"
)

type stubRepo struct {
	createUserID  int64
	createUserErr error

	getUser    *model.User
	getUserErr error
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, u model.NewUser) (int64, error) {
	return s.createUserID, s.createUserErr
}

func (s *stubRepo) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.getUser, s.getUserErr
}

func (s *stubRepo) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.getUser, s.getUserErr
}

func (s *stubRepo) ListUsers(ctx context.Context) ([]model.User, error) { return nil, nil }

func (s *stubRepo) UpdateEmail(ctx context.Context, id int64, email string) error { return nil }

func (s *stubRepo) DeleteUser(ctx context.Context, id int64) error { return nil }

func (s *stubRepo) GetTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	return nil, model.ErrNotFound
}

func (s *stubRepo) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	return nil, nil
}

func (s *stubRepo) ListTransactionsByUser(ctx context.Context, userID int64) ([]model.Transaction, error) {
	return nil, nil
}

func (s *stubRepo) CreateFriendship(ctx context.Context, userID, friendID int64) error { return nil }

func (s *stubRepo) ListFriends(ctx context.Context, userID int64) ([]model.User, error) {
	return nil, nil
}

func newTestHasher() *credential.Hasher {
	return credential.NewHasher("test-salt", 1)
}

func newMemoryService(t *testing.T) (*Service, *repository.MemoryRepository) {
	t.Helper()

	hasher := newTestHasher()
	repo := repository.NewMemoryRepository()
	proc := payment.NewProcessor(repo, ledger.New(repo, hasher), nil, zap.NewNop())
	return NewService(repo, proc, hasher), repo
}

func TestRegisterUser_PropagatesDuplicateError(t *testing.T) {
	repo := &stubRepo{
		createUserErr: model.ErrUserExists,
	}
	svc := NewService(repo, nil, newTestHasher())

	_, err := svc.RegisterUser(context.Background(), RegisterParams{Username: "login", Password: "pass"})
	if !errors.Is(err, model.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestRegisterUser_NegativeBalance(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, newTestHasher())

	_, err := svc.RegisterUser(context.Background(), RegisterParams{Username: "login", Password: "pass", Balance: -1})
	if !errors.Is(err, model.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestRegisterUser_StoresHashNotPassword(t *testing.T) {
	svc, repo := newMemoryService(t)

	u, err := svc.RegisterUser(context.Background(), RegisterParams{
		Name: "Alice", Username: "alice", Password: "secret", Balance: 100, Email: "alice@example.com",
	})
	if err != nil {
		t.Fatalf("RegisterUser error: %v", err)
	}

	stored, err := repo.GetUser(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetUser error: %v", err)
	}
	if stored.PasswordHash == "secret" || stored.PasswordHash != newTestHasher().Hash("secret") {
		t.Fatalf("unexpected password hash %q", stored.PasswordHash)
	}
	if stored.Balance != 100 {
		t.Fatalf("Balance = %d, want 100", stored.Balance)
	}
}

func TestAuthenticateUser_InvalidCredentials(t *testing.T) {
	repo := &stubRepo{
		getUser: &model.User{
			ID:           1,
			Username:     "user",
			PasswordHash: newTestHasher().Hash("correct"),
		},
	}

	svc := NewService(repo, nil, newTestHasher())

	_, err := svc.AuthenticateUser(context.Background(), "user", "wrong")
	if !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	id, err := svc.AuthenticateUser(context.Background(), "user", "correct")
	if err != nil || id != 1 {
		t.Fatalf("AuthenticateUser = %d, %v; want 1, nil", id, err)
	}
}

func TestAuthenticateUser_UnknownUser(t *testing.T) {
	repo := &stubRepo{getUserErr: model.ErrNotFound}
	svc := NewService(repo, nil, newTestHasher())

	_, err := svc.AuthenticateUser(context.Background(), "ghost", "pass")
	if !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestUpdateEmailAndDelete_RequirePassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryService(t)

	u, err := svc.RegisterUser(ctx, RegisterParams{Name: "Alice", Username: "alice", Password: "secret"})
	if err != nil {
		t.Fatalf("RegisterUser error: %v", err)
	}

	if _, err := svc.UpdateEmail(ctx, u.ID, "wrong", "a@example.com"); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	updated, err := svc.UpdateEmail(ctx, u.ID, "secret", "a@example.com")
	if err != nil {
		t.Fatalf("UpdateEmail error: %v", err)
	}
	if updated.Email != "a@example.com" {
		t.Fatalf("Email = %q, want a@example.com", updated.Email)
	}

	if err := svc.DeleteUser(ctx, u.ID, "wrong"); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := svc.DeleteUser(ctx, u.ID, "secret"); err != nil {
		t.Fatalf("DeleteUser error: %v", err)
	}
	if _, err := svc.GetUser(ctx, u.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestListFriends_UnknownUser(t *testing.T) {
	svc, _ := newMemoryService(t)

	_, err := svc.ListFriends(context.Background(), 42)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSendAndHistory(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryService(t)

	alice, err := svc.RegisterUser(ctx, RegisterParams{Name: "Alice", Username: "alice", Password: "a", Balance: 100})
	if err != nil {
		t.Fatalf("RegisterUser error: %v", err)
	}
	bob, err := svc.RegisterUser(ctx, RegisterParams{Name: "Bob", Username: "bob", Password: "b"})
	if err != nil {
		t.Fatalf("RegisterUser error: %v", err)
	}

	if _, err := svc.Send(ctx, payment.SendParams{SenderID: alice.ID, ReceiverID: bob.ID, Amount: 30, Password: "a"}); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	req, err := svc.RequestPayment(ctx, payment.RequestParams{SenderID: alice.ID, ReceiverID: bob.ID, Amount: 5})
	if err != nil {
		t.Fatalf("RequestPayment error: %v", err)
	}
	if _, err := svc.ResolveRequest(ctx, payment.ResolveParams{TransactionID: req.ID, Accept: true, Password: "a"}); err != nil {
		t.Fatalf("ResolveRequest error: %v", err)
	}

	history, err := svc.ListUserTransactions(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListUserTransactions error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(history))
	}

	if err := svc.DeleteUser(ctx, bob.ID, "b"); !errors.Is(err, model.ErrHasHistory) {
		t.Fatalf("expected ErrHasHistory, got %v", err)
	}

	a, err := svc.GetUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetUser error: %v", err)
	}
	if a.Balance != 65 {
		t.Fatalf("Balance = %d, want 65", a.Balance)
	}
}
