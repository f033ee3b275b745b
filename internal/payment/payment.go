// Package payment реализует прямые переводы и жизненный цикл запросов на оплату.
//
// Запрос создаётся в статусе unset и переходит в accepted или denied ровно один раз.
// Принятие запроса выполняет тот же перевод через ledger, что и прямой перевод:
// проверка пароля плательщика, проверка средств, перевод и смена статуса
// выполняются в одной единице работы хранилища.
package payment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/venmo-service/internal/ledger"
	"github.com/mmeshcher/venmo-service/internal/model"
	"github.com/mmeshcher/venmo-service/internal/notify"
	"github.com/mmeshcher/venmo-service/internal/repository"
)

// Notifier принимает уведомления для асинхронной доставки.
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) error
}

// SendParams описывает прямой перевод.
type SendParams struct {
	SenderID   int64
	ReceiverID int64
	Amount     int64
	Message    string
	Password   string
}

// RequestParams описывает запрос на оплату. SenderID это плательщик,
// ReceiverID получатель средств.
type RequestParams struct {
	SenderID   int64
	ReceiverID int64
	Amount     int64
	Message    string
	// AutoAccept сразу принимает запрос; Password должен принадлежать плательщику.
	AutoAccept bool
	Password   string
}

// ResolveParams описывает решение плательщика по запросу.
type ResolveParams struct {
	TransactionID int64
	Accept        bool
	Password      string
}

// Processor выполняет переводы и переходы состояний запросов.
type Processor struct {
	store    ledger.TxRunner
	ledger   *ledger.Ledger
	notifier Notifier
	logger   *zap.Logger
}

// NewProcessor создаёт Processor.
func NewProcessor(store ledger.TxRunner, l *ledger.Ledger, notifier Notifier, logger *zap.Logger) *Processor {
	return &Processor{
		store:    store,
		ledger:   l,
		notifier: notifier,
		logger:   logger,
	}
}

// Send переводит средства и сохраняет транзакцию сразу в статусе accepted.
func (p *Processor) Send(ctx context.Context, sp SendParams) (*model.Transaction, error) {
	var (
		tr  *model.Transaction
		res *ledger.Result
	)

	err := p.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		res, err = p.ledger.TransferTx(ctx, tx, ledger.TransferParams{
			SenderID:   sp.SenderID,
			ReceiverID: sp.ReceiverID,
			Amount:     sp.Amount,
			Password:   sp.Password,
		})
		if err != nil {
			return err
		}

		tr = &model.Transaction{
			SenderID:   sp.SenderID,
			ReceiverID: sp.ReceiverID,
			Amount:     sp.Amount,
			Message:    sp.Message,
			Status:     model.StatusAccepted,
		}
		return tx.CreateTransaction(ctx, tr)
	})
	if err != nil {
		return nil, err
	}

	p.notifyTransfer(ctx, tr, res)
	return tr, nil
}

// RequestPayment создаёт запрос на оплату. При AutoAccept запрос принимается
// в той же единице работы; при любой ошибке запрос не сохраняется.
func (p *Processor) RequestPayment(ctx context.Context, rp RequestParams) (*model.Transaction, error) {
	if rp.Amount <= 0 {
		return nil, model.ErrInvalidAmount
	}
	if rp.SenderID == rp.ReceiverID {
		return nil, model.ErrSameUser
	}

	var (
		tr  *model.Transaction
		res *ledger.Result
	)

	err := p.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		for _, id := range []int64{rp.SenderID, rp.ReceiverID} {
			if _, err := tx.UserByID(ctx, id); err != nil {
				return fmt.Errorf("user %d: %w", id, err)
			}
		}

		tr = &model.Transaction{
			SenderID:   rp.SenderID,
			ReceiverID: rp.ReceiverID,
			Amount:     rp.Amount,
			Message:    rp.Message,
			Status:     model.StatusUnset,
		}
		if err := tx.CreateTransaction(ctx, tr); err != nil {
			return err
		}

		if !rp.AutoAccept {
			return nil
		}

		var err error
		tr, res, err = p.acceptTx(ctx, tx, tr, rp.Password)
		return err
	})
	if err != nil {
		return nil, err
	}

	if res != nil {
		p.notifyTransfer(ctx, tr, res)
	}
	return tr, nil
}

// Resolve принимает или отклоняет запрос. Решение может принять только
// плательщик, поэтому пароль проверяется в обоих случаях. Повторное решение
// возвращает model.ErrAlreadyResolved и ничего не меняет.
func (p *Processor) Resolve(ctx context.Context, rp ResolveParams) (*model.Transaction, error) {
	var (
		tr  *model.Transaction
		res *ledger.Result
	)

	err := p.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		current, err := tx.LockTransaction(ctx, rp.TransactionID)
		if err != nil {
			return err
		}
		if current.Status != model.StatusUnset {
			return model.ErrAlreadyResolved
		}

		if rp.Accept {
			tr, res, err = p.acceptTx(ctx, tx, current, rp.Password)
			return err
		}

		if _, err := p.ledger.AuthorizeTx(ctx, tx, current.SenderID, rp.Password); err != nil {
			return err
		}
		tr, err = tx.SetStatus(ctx, current.ID, model.StatusUnset, model.StatusDenied)
		return err
	})
	if err != nil {
		return nil, err
	}

	if res != nil {
		p.notifyTransfer(ctx, tr, res)
	}
	return tr, nil
}

// acceptTx сначала выполняет перевод и только после успеха меняет статус,
// поэтому запрос не может оказаться accepted без перемещения средств.
func (p *Processor) acceptTx(ctx context.Context, tx repository.Tx, tr *model.Transaction, password string) (*model.Transaction, *ledger.Result, error) {
	res, err := p.ledger.TransferTx(ctx, tx, ledger.TransferParams{
		SenderID:   tr.SenderID,
		ReceiverID: tr.ReceiverID,
		Amount:     tr.Amount,
		Password:   password,
	})
	if err != nil {
		return nil, nil, err
	}

	updated, err := tx.SetStatus(ctx, tr.ID, model.StatusUnset, model.StatusAccepted)
	if err != nil {
		return nil, nil, err
	}
	return updated, res, nil
}
