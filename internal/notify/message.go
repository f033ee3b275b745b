// Package notify доставляет уведомления о переводах пользователям.
// Уведомления ставятся в очередь и отправляются фоновым обработчиком,
// поэтому сбой доставки не влияет на результат финансовой операции.
package notify

import (
	"context"
	"errors"
)

// ErrQueueFull возвращается, если очередь уведомлений переполнена.
var ErrQueueFull = errors.New("notification queue is full")

// Message описывает одно письмо пользователю.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Queue хранит уведомления до отправки.
type Queue interface {
	Push(ctx context.Context, msg Message) error
	// Pop блокируется до появления сообщения или отмены контекста.
	Pop(ctx context.Context) (Message, error)
}

// Mailer отправляет письмо во внешнюю систему.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
