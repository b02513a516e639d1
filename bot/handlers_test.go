package bot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coredatabase "github.com/m3rciful/counterbot/core/database"
	tg "github.com/m3rciful/counterbot/core/telegram"
	"github.com/m3rciful/counterbot/core/telegram/router"
	"github.com/m3rciful/counterbot/counters"
	"github.com/m3rciful/counterbot/dialogue"
)

const adminID int64 = 7

type sentMessage struct {
	text string
	opts *tele.SendOptions
}

// fakeContext implements the parts of tele.Context the handlers touch.
type fakeContext struct {
	tele.Context
	chat   *tele.Chat
	sender *tele.User
	text   string
	values map[string]any
	sent   *[]sentMessage
}

func (f *fakeContext) Chat() *tele.Chat   { return f.chat }
func (f *fakeContext) Sender() *tele.User { return f.sender }
func (f *fakeContext) Text() string       { return f.text }
func (f *fakeContext) Update() tele.Update {
	return tele.Update{ID: 1, Message: &tele.Message{Text: f.text, Chat: f.chat, Sender: f.sender}}
}
func (f *fakeContext) Get(key string) interface{}      { return f.values[key] }
func (f *fakeContext) Set(key string, val interface{}) { f.values[key] = val }

func (f *fakeContext) Send(what interface{}, opts ...interface{}) error {
	msg := sentMessage{text: what.(string)}
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			msg.opts = so
		}
	}
	*f.sent = append(*f.sent, msg)
	return nil
}

type botHarness struct {
	t      *testing.T
	routes map[any]tele.HandlerFunc
	sent   []sentMessage
}

func newBotHarness(t *testing.T) *botHarness {
	t.Helper()
	cfg := coredatabase.Config{Driver: "sqlite3", Path: filepath.Join(t.TempDir(), "bot.db")}
	require.NoError(t, cfg.Normalize())
	db, err := coredatabase.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, coredatabase.RunMigrations(cfg, counters.Migrations()))

	store := counters.NewSQLStore(db)
	handlers := NewHandlers(dialogue.New(store), store)
	reg := tg.NewRegistry()
	handlers.Register(reg)

	h := &botHarness{t: t, routes: make(map[any]tele.HandlerFunc)}
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: adminID})
	routes = append(routes, router.TextRoutes(handlers, reg, router.TextOptions{})...)
	for _, r := range routes {
		h.routes[r.Endpoint] = r.Handler
	}
	return h
}

// send routes text the way telebot would: known commands to their endpoint, the rest to OnText.
func (h *botHarness) send(from int64, text string) *sentMessage {
	h.t.Helper()
	before := len(h.sent)
	c := &fakeContext{
		chat:   &tele.Chat{ID: 500, Type: tele.ChatPrivate, FirstName: "Ada"},
		sender: &tele.User{ID: from, FirstName: "Ada"},
		text:   text,
		values: map[string]any{},
		sent:   &h.sent,
	}
	handler, ok := h.routes[text]
	if !ok {
		handler = h.routes[tele.OnText]
	}
	require.NoError(h.t, handler(c))
	if len(h.sent) == before {
		return nil
	}
	return &h.sent[len(h.sent)-1]
}

func TestBotCreateAndList(t *testing.T) {
	h := newBotHarness(t)

	msg := h.send(1, "/start")
	require.NotNil(t, msg)
	assert.Contains(t, msg.text, "Hello, Ada!")

	assert.Nil(t, h.send(1, "just chatting"))

	h.send(1, "/createcounter")
	h.send(1, "Pushups")
	msg = h.send(1, "10")
	require.NotNil(t, msg)
	assert.Contains(t, msg.text, `Counter "Pushups"`)

	msg = h.send(1, "/listcounters")
	require.NotNil(t, msg)
	require.NotNil(t, msg.opts)
	assert.Equal(t, tele.ModeMarkdown, msg.opts.ParseMode)
	assert.Contains(t, msg.text, "*Pushups*")
}

func TestBotActionKeyboard(t *testing.T) {
	h := newBotHarness(t)
	h.send(1, "/createcounter")
	h.send(1, "Pushups")
	h.send(1, "5")
	h.send(1, "/counters")

	msg := h.send(1, "1")
	require.NotNil(t, msg)
	require.NotNil(t, msg.opts)
	require.NotNil(t, msg.opts.ReplyMarkup)
	assert.True(t, msg.opts.ReplyMarkup.OneTimeKeyboard)
	assert.Len(t, msg.opts.ReplyMarkup.ReplyKeyboard, 4)

	msg = h.send(1, "Increment")
	require.NotNil(t, msg)
	assert.Contains(t, msg.text, "New value: 6")
	require.NotNil(t, msg.opts)
	assert.True(t, msg.opts.ReplyMarkup.RemoveKeyboard)
}

func TestBotStatsIsAdminOnly(t *testing.T) {
	h := newBotHarness(t)
	h.send(1, "/createcounter")

	assert.Nil(t, h.send(1, "/stats"))

	msg := h.send(adminID, "/stats")
	require.NotNil(t, msg)
	assert.Contains(t, msg.text, "Counters: 0")
	assert.Contains(t, msg.text, "Active conversations: 1")
}

func TestMarkup(t *testing.T) {
	assert.Nil(t, Markup(dialogue.Reply{Text: "x"}))
	assert.True(t, Markup(dialogue.Reply{RemoveKeyboard: true}).RemoveKeyboard)

	m := Markup(dialogue.Reply{Keyboard: [][]string{{"Yes", "No"}}, RemoveKeyboard: true})
	require.NotNil(t, m)
	assert.False(t, m.RemoveKeyboard)
	assert.Len(t, m.ReplyKeyboard[0], 2)
}
