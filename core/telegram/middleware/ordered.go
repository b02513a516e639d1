package middleware

import (
	"context"
	"log/slog"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/counterbot/core/logger"
)

// ChatQueue runs the rest of the handler chain on a fixed set of workers.
// Updates of one chat always land on the same worker, so they are handled
// one at a time in arrival order while other chats proceed in parallel.
//
// The bot must deliver updates synchronously: the queue keeps the order in
// which its middleware is called.
type ChatQueue struct {
	queues  []chan update
	onError func(error, tele.Context)

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type update struct {
	c    tele.Context
	next tele.HandlerFunc
}

// NewChatQueue starts workers goroutines with room for size pending updates
// each. onError receives handler errors; it may be nil.
func NewChatQueue(workers, size int, onError func(error, tele.Context)) *ChatQueue {
	if workers <= 0 {
		workers = 8
	}
	if size <= 0 {
		size = 128
	}
	q := &ChatQueue{queues: make([]chan update, workers), onError: onError}
	for i := range q.queues {
		q.queues[i] = make(chan update, size)
		q.wg.Add(1)
		go q.work(q.queues[i])
	}
	return q
}

// Middleware queues next for the update's chat and returns at once. A full
// queue blocks the caller instead of dropping the update. After Close the
// chain runs inline.
func (q *ChatQueue) Middleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		q.mu.RLock()
		defer q.mu.RUnlock()
		if q.closed {
			return next(c)
		}
		q.queueFor(chatOf(c)) <- update{c: c, next: next}
		return nil
	}
}

// Close stops accepting updates, drains the queues and waits for the workers.
func (q *ChatQueue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		for _, ch := range q.queues {
			close(ch)
		}
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *ChatQueue) queueFor(chatID int64) chan update {
	n := uint64(chatID)
	if chatID < 0 {
		n = uint64(-chatID)
	}
	return q.queues[n%uint64(len(q.queues))]
}

func (q *ChatQueue) work(ch <-chan update) {
	defer q.wg.Done()
	for u := range ch {
		q.run(u)
	}
}

func (q *ChatQueue) run(u update) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(context.Background(), "tg", "update.panic",
				slog.Int64("chat_id", chatOf(u.c)),
				slog.Any("panic", r),
			)
		}
	}()
	if err := u.next(u.c); err != nil && q.onError != nil {
		q.onError(err, u.c)
	}
}

func chatOf(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	return 0
}
