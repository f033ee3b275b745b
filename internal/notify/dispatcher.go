package notify

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Dispatcher принимает уведомления и доставляет их в фоне.
type Dispatcher struct {
	queue   Queue
	mailer  Mailer
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewDispatcher создаёт Dispatcher. Доставка защищена автоматом размыкания:
// после серии ошибок почтового релея письма отбрасываются до истечения таймаута.
func NewDispatcher(queue Queue, mailer Mailer, logger *zap.Logger) *Dispatcher {
	settings := gobreaker.Settings{
		Name:        "mailer",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Dispatcher{
		queue:   queue,
		mailer:  mailer,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Notify ставит сообщение в очередь и не ждёт доставки.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) error {
	return d.queue.Push(ctx, msg)
}

// Run доставляет уведомления из очереди до отмены контекста.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		msg, err := d.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Error("pop notification", zap.Error(err))
			timer := time.NewTimer(time.Second)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			continue
		}

		d.deliver(ctx, msg)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	_, err := d.breaker.Execute(func() (interface{}, error) {
		return nil, d.mailer.Send(ctx, msg)
	})
	if err == nil {
		return
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		d.logger.Warn("notification dropped, mailer unavailable", zap.String("to", msg.To), zap.Error(err))
		return
	}
	d.logger.Error("deliver notification", zap.String("to", msg.To), zap.Error(err))
}
