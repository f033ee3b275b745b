package payment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/venmo-service/internal/ledger"
	"github.com/mmeshcher/venmo-service/internal/model"
	"github.com/mmeshcher/venmo-service/internal/notify"
)

func transferMessages(tr *model.Transaction, res *ledger.Result) []notify.Message {
	note := ""
	if tr.Message != "" {
		note = fmt.Sprintf(" Message: %q.", tr.Message)
	}

	return []notify.Message{
		{
			To:      res.Sender.Email,
			Subject: "Payment sent",
			Body: fmt.Sprintf("%s, you sent %d to %s.%s Your balance is %d.",
				res.Sender.Name, tr.Amount, res.Receiver.Name, note, res.Sender.Balance),
		},
		{
			To:      res.Receiver.Email,
			Subject: "Payment received",
			Body: fmt.Sprintf("%s, %s sent you %d.%s Your balance is %d.",
				res.Receiver.Name, res.Sender.Name, tr.Amount, note, res.Receiver.Balance),
		},
	}
}

// notifyTransfer вызывается после фиксации перевода. Ошибки только логируются.
func (p *Processor) notifyTransfer(ctx context.Context, tr *model.Transaction, res *ledger.Result) {
	if p.notifier == nil {
		return
	}

	for _, msg := range transferMessages(tr, res) {
		if msg.To == "" {
			continue
		}
		if err := p.notifier.Notify(ctx, msg); err != nil {
			p.logger.Error("enqueue notification",
				zap.Error(err),
				zap.Int64("transactionID", tr.ID),
				zap.String("to", msg.To),
			)
		}
	}
}
