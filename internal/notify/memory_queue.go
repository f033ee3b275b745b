package notify

import "context"

// MemoryQueue хранит уведомления в буферизованном канале внутри процесса.
type MemoryQueue struct {
	ch chan Message
}

// NewMemoryQueue создаёт очередь заданной ёмкости.
func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{ch: make(chan Message, size)}
}

// Push добавляет сообщение, не блокируясь; при переполнении возвращает ErrQueueFull.
func (q *MemoryQueue) Push(_ context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pop извлекает следующее сообщение.
func (q *MemoryQueue) Pop(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case msg := <-q.ch:
		return msg, nil
	}
}
