package model

import "errors"

var (
	// ErrNotFound возвращается, если пользователь или транзакция не найдены.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized возвращается при неверном идентификаторе или пароле.
	// Оба случая намеренно неразличимы для вызывающей стороны.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInsufficientFunds возвращается, если сумма превышает баланс отправителя.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidAmount возвращается для неположительной суммы.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrAlreadyResolved возвращается при повторном решении по запросу.
	ErrAlreadyResolved = errors.New("transaction already resolved")
	// ErrConflict возвращается, если атомарное обновление проиграло гонку. Запрос можно повторить.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrUserExists возвращается при регистрации занятого имени пользователя.
	ErrUserExists = errors.New("user already exists")
	// ErrSameUser возвращается, если отправитель и получатель совпадают.
	ErrSameUser = errors.New("sender and receiver must differ")
	// ErrFriendshipExists возвращается при повторном создании дружбы.
	ErrFriendshipExists = errors.New("friendship already exists")
	// ErrBalanceOverflow возвращается, если зачисление превысит максимальный баланс.
	ErrBalanceOverflow = errors.New("balance overflow")
	// ErrHasHistory возвращается при удалении пользователя, участвовавшего в транзакциях.
	ErrHasHistory = errors.New("user has transaction history")
)
