package middleware

import (
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	tele "gopkg.in/telebot.v4"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type chatContext struct {
	tele.Context
	chat *tele.Chat
	text string
}

func (c chatContext) Chat() *tele.Chat { return c.chat }
func (c chatContext) Text() string     { return c.text }

func textUpdate(id int, chatID int64, text string) tele.Update {
	return tele.Update{ID: id, Message: &tele.Message{
		ID:     id,
		Chat:   &tele.Chat{ID: chatID},
		Sender: &tele.User{ID: chatID},
		Text:   text,
	}}
}

func TestChatQueueKeepsArrivalOrderPerChat(t *testing.T) {
	bot, err := tele.NewBot(tele.Settings{Offline: true, Synchronous: true})
	require.NoError(t, err)

	queue := NewChatQueue(4, 8, nil)
	bot.Use(queue.Middleware)

	var mu sync.Mutex
	seen := map[int64][]string{}
	bot.Handle(tele.OnText, func(c tele.Context) error {
		// Uneven work per update; a racing worker would reorder these.
		if n, _ := strconv.Atoi(c.Text()); n%3 == 0 {
			time.Sleep(time.Millisecond)
		}
		mu.Lock()
		seen[c.Chat().ID] = append(seen[c.Chat().ID], c.Text())
		mu.Unlock()
		return nil
	})

	const burst = 60
	var want []string
	for i := 0; i < burst; i++ {
		want = append(want, strconv.Itoa(i))
		bot.ProcessUpdate(textUpdate(2*i, 42, strconv.Itoa(i)))
		bot.ProcessUpdate(textUpdate(2*i+1, -100500, strconv.Itoa(i)))
	}
	queue.Close()

	assert.Equal(t, want, seen[42])
	assert.Equal(t, want, seen[-100500])
}

func TestChatQueueRunsChatsInParallel(t *testing.T) {
	queue := NewChatQueue(4, 1, nil)
	defer queue.Close()

	other := make(chan struct{})
	done := make(chan struct{})
	slow := queue.Middleware(func(tele.Context) error {
		select {
		case <-other:
		case <-time.After(2 * time.Second):
			t.Error("chat 2 was not handled while chat 1 was busy")
		}
		close(done)
		return nil
	})
	fast := queue.Middleware(func(tele.Context) error {
		close(other)
		return nil
	})

	require.NoError(t, slow(chatContext{chat: &tele.Chat{ID: 1}}))
	require.NoError(t, fast(chatContext{chat: &tele.Chat{ID: 2}}))
	<-done
}

func TestChatQueueReportsErrors(t *testing.T) {
	var mu sync.Mutex
	var got []error
	queue := NewChatQueue(2, 4, func(err error, _ tele.Context) {
		mu.Lock()
		got = append(got, err)
		mu.Unlock()
	})

	boom := errors.New("boom")
	h := queue.Middleware(func(tele.Context) error { return boom })
	p := queue.Middleware(func(tele.Context) error { panic("handler exploded") })
	require.NoError(t, h(chatContext{chat: &tele.Chat{ID: 5}}))
	require.NoError(t, p(chatContext{chat: &tele.Chat{ID: 5}}))
	require.NoError(t, h(chatContext{}))
	queue.Close()

	assert.Equal(t, []error{boom, boom}, got)
}

func TestChatQueueRunsInlineAfterClose(t *testing.T) {
	queue := NewChatQueue(1, 1, nil)
	queue.Close()
	queue.Close()

	boom := errors.New("boom")
	called := false
	err := queue.Middleware(func(tele.Context) error {
		called = true
		return boom
	})(chatContext{chat: &tele.Chat{ID: 9}})
	assert.True(t, called)
	assert.ErrorIs(t, err, boom)
}
