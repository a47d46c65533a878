package workers

import (
	"context"
	"interest-chat/contract"
	"interest-chat/domain/chat"
	"interest-chat/observability"
	"log/slog"
)

// IndexWorker feeds persisted messages to the full text index.
// Indexing lags behind the write, a failure is logged and never reaches the sender.
type IndexWorker struct {
	index    contract.IMessageIndex
	messages chan chat.Message
	log      *slog.Logger
}

func NewIndexWorker(index contract.IMessageIndex, messages chan chat.Message, log *slog.Logger) *IndexWorker {
	return &IndexWorker{index: index, messages: messages, log: log}
}

func (w *IndexWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping index worker")
			return ctx.Err()
		case message, ok := <-w.messages:
			if !ok {
				w.log.Debug("Index channel is closed")
				return nil
			}
			err := w.index.Index(message)
			observability.IncIndexed(err)
			if err != nil {
				w.log.Error("Failed to index message", "id", message.ID, "interest", message.InterestID, "error", err)
			}
		}
	}
}
