package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/venmo-service/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	userColumns        = `id, name, username, password_hash, balance, email, created_at`
	transactionColumns = `id, created_at, sender_id, receiver_id, amount, message, status, resolved_at`
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	delays []time.Duration
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{
		pool:   pool,
		delays: []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second},
	}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет fn при временных ошибках: сбоях сериализации, дедлоках и обрывах соединения.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(r.delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(r.delays) {
			break
		}

		timer := time.NewTimer(r.delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}

	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// InTx выполняет fn в транзакции БД. Транзакция повторяется при сбоях сериализации
// и дедлоках; если повторы исчерпаны, возвращается model.ErrConflict.
func (r *PostgresRepository) InTx(ctx context.Context, fn TxFunc) error {
	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(ctx, &pgTx{tx: tx}); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil && isRetryable(err) {
		return fmt.Errorf("%w: %w", model.ErrConflict, err)
	}
	return err
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, u model.NewUser) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (name, username, password_hash, balance, email) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		u.Name, u.Username, u.PasswordHash, u.Balance, u.Email,
	).Scan(&id)
	if err != nil {
		switch pgErrorCode(err) {
		case pgerrcode.UniqueViolation:
			return 0, fmt.Errorf("%w: %s", model.ErrUserExists, u.Username)
		case pgerrcode.CheckViolation:
			return 0, model.ErrInvalidAmount
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUser возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	))
}

// GetUserByUsername возвращает пользователя по имени пользователя.
func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username,
	))
}

// ListUsers возвращает всех пользователей.
func (r *PostgresRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	return collectUsers(rows)
}

// UpdateEmail меняет адрес для уведомлений.
func (r *PostgresRepository) UpdateEmail(ctx context.Context, id int64, email string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET email = $2 WHERE id = $1`, id, email)
	if err != nil {
		return fmt.Errorf("update email: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// DeleteUser удаляет пользователя вместе с его дружбами.
// Пользователь, участвовавший в транзакциях, не удаляется.
func (r *PostgresRepository) DeleteUser(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if pgErrorCode(err) == pgerrcode.ForeignKeyViolation {
			return model.ErrHasHistory
		}
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// GetTransaction возвращает транзакцию по идентификатору.
func (r *PostgresRepository) GetTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id,
	))
}

// ListTransactions возвращает все транзакции, новые первыми.
func (r *PostgresRepository) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	return collectTransactions(rows)
}

// ListTransactionsByUser возвращает транзакции, в которых пользователь плательщик или получатель.
func (r *PostgresRepository) ListTransactionsByUser(ctx context.Context, userID int64) ([]model.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions
		 WHERE sender_id = $1 OR receiver_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select user transactions: %w", err)
	}
	return collectTransactions(rows)
}

// CreateFriendship создаёт пару записей (a, b) и (b, a) в одной транзакции.
func (r *PostgresRepository) CreateFriendship(ctx context.Context, userID, friendID int64) error {
	if userID == friendID {
		return model.ErrSameUser
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	batch.Queue(`INSERT INTO friendships (user_id, friend_id) VALUES ($1, $2)`, userID, friendID)
	batch.Queue(`INSERT INTO friendships (user_id, friend_id) VALUES ($1, $2)`, friendID, userID)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		switch pgErrorCode(err) {
		case pgerrcode.UniqueViolation:
			return model.ErrFriendshipExists
		case pgerrcode.ForeignKeyViolation:
			return model.ErrNotFound
		}
		return fmt.Errorf("insert friendship: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListFriends возвращает друзей пользователя.
func (r *PostgresRepository) ListFriends(ctx context.Context, userID int64) ([]model.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.name, u.username, u.password_hash, u.balance, u.email, u.created_at
		 FROM friendships f
		 JOIN users u ON u.id = f.friend_id
		 WHERE f.user_id = $1
		 ORDER BY u.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select friends: %w", err)
	}
	return collectUsers(rows)
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) UserByID(ctx context.Context, id int64) (*model.User, error) {
	return scanUser(t.tx.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	))
}

func (t *pgTx) UserByIDAndCredential(ctx context.Context, id int64, passwordHash string) (*model.User, error) {
	return scanUser(t.tx.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND password_hash = $2`, id, passwordHash,
	))
}

// LockUsers блокирует строки пользователей, чтобы проверка баланса и списание
// выполнялись под одной блокировкой. Порядок по id исключает дедлоки.
func (t *pgTx) LockUsers(ctx context.Context, ids ...int64) error {
	ids = uniqueSorted(ids)

	rows, err := t.tx.Query(ctx,
		`SELECT id FROM users WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids,
	)
	if err != nil {
		return fmt.Errorf("lock users: %w", err)
	}
	defer rows.Close()

	locked := 0
	for rows.Next() {
		locked++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock users: %w", err)
	}

	if locked != len(ids) {
		return model.ErrNotFound
	}
	return nil
}

func (t *pgTx) ApplyBalanceDelta(ctx context.Context, id int64, delta int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE users SET balance = balance + $2 WHERE id = $1`, id, delta)
	if err != nil {
		switch pgErrorCode(err) {
		case pgerrcode.CheckViolation:
			return model.ErrInsufficientFunds
		case pgerrcode.NumericValueOutOfRange:
			return model.ErrBalanceOverflow
		}
		return fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (t *pgTx) CreateTransaction(ctx context.Context, tr *model.Transaction) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO transactions (sender_id, receiver_id, amount, message, status, resolved_at)
		 VALUES ($1, $2, $3, $4, $5::text, CASE WHEN $5::text = 'unset' THEN NULL ELSE now() END)
		 RETURNING id, created_at, resolved_at`,
		tr.SenderID, tr.ReceiverID, tr.Amount, tr.Message, string(tr.Status),
	).Scan(&tr.ID, &tr.CreatedAt, &tr.ResolvedAt)
	if err != nil {
		if pgErrorCode(err) == pgerrcode.ForeignKeyViolation {
			return model.ErrNotFound
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (t *pgTx) LockTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	return scanTransaction(t.tx.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id,
	))
}

func (t *pgTx) SetStatus(ctx context.Context, id int64, expected, next model.TransactionStatus) (*model.Transaction, error) {
	tr, err := scanTransaction(t.tx.QueryRow(ctx,
		`UPDATE transactions SET status = $3, resolved_at = now()
		 WHERE id = $1 AND status = $2
		 RETURNING `+transactionColumns,
		id, string(expected), string(next),
	))
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrConflict
	}
	return tr, err
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Username, &u.PasswordHash, &u.Balance, &u.Email, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func collectUsers(rows pgx.Rows) ([]model.User, error) {
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return users, nil
}

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var (
		tr     model.Transaction
		status string
	)
	err := row.Scan(&tr.ID, &tr.CreatedAt, &tr.SenderID, &tr.ReceiverID, &tr.Amount, &tr.Message, &status, &tr.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	tr.Status = model.TransactionStatus(status)
	return &tr, nil
}

func collectTransactions(rows pgx.Rows) ([]model.Transaction, error) {
	defer rows.Close()

	var res []model.Transaction
	for rows.Next() {
		tr, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *tr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}
