package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/m3rciful/counterbot/core/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func chatCtx(chatID int64) context.Context {
	return logger.WithUpdateMeta(context.Background(), 1, chatID, chatID)
}

func TestDispatcherKeepsPerChatOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 4, QueueSize: 64})

	var (
		mu  sync.Mutex
		got = map[int64][]int{}
	)
	for i := 0; i < 20; i++ {
		for _, chatID := range []int64{7, -100123, 42} {
			chatID, i := chatID, i
			err := d.Enqueue(chatCtx(chatID), "send", "sendMessage", func() error {
				mu.Lock()
				got[chatID] = append(got[chatID], i)
				mu.Unlock()
				return nil
			})
			require.NoError(t, err)
		}
	}
	d.Close()

	for _, chatID := range []int64{7, -100123, 42} {
		seq := got[chatID]
		require.Len(t, seq, 20)
		for i, v := range seq {
			assert.Equal(t, i, v, "chat %d out of order", chatID)
		}
	}
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	d.Close()
	d.Close()

	err := d.Enqueue(context.Background(), "send", "", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestDispatcherRejectsNilRun(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	defer d.Close()
	assert.Error(t, d.Enqueue(context.Background(), "send", "", nil))
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})

	var calls atomic.Int32
	err := d.Enqueue(chatCtx(1), "send", "sendMessage", func() error {
		if calls.Add(1) < 3 {
			return &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
		}
		return nil
	})
	require.NoError(t, err)
	d.Close()

	assert.EqualValues(t, 3, calls.Load())
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherCountsPermanentFailures(t *testing.T) {
	d := NewDispatcher(Options{Workers: 2, MaxRetries: 3, RetryBackoff: time.Millisecond})

	var calls atomic.Int32
	for _, chatID := range []int64{1, 2} {
		err := d.Enqueue(chatCtx(chatID), "send", "sendMessage", func() error {
			calls.Add(1)
			return errors.New("telegram: Bad Request: chat not found (400)")
		})
		require.NoError(t, err)
	}
	d.Close()

	assert.EqualValues(t, 2, calls.Load())
	assert.EqualValues(t, 2, d.ErrorCount())
}

func TestRedactHidesToken(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AAbb-cc_DD/sendMessage": dial tcp`)
	msg := redact(err)
	assert.NotContains(t, msg, "123456:AAbb-cc_DD")
	assert.Contains(t, msg, "bot<redacted>")
}
