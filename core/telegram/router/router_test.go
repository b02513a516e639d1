package router

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/counterbot/core/telegram"
	"github.com/m3rciful/counterbot/core/telegram/commands"
)

type fakeContext struct {
	tele.Context
	text   string
	chat   *tele.Chat
	sender *tele.User
	values map[string]any
}

func newFakeContext(chatID int64, text string) *fakeContext {
	return &fakeContext{
		text:   text,
		chat:   &tele.Chat{ID: chatID, Type: tele.ChatPrivate},
		sender: &tele.User{ID: chatID},
		values: map[string]any{},
	}
}

func (f *fakeContext) Text() string       { return f.text }
func (f *fakeContext) Chat() *tele.Chat   { return f.chat }
func (f *fakeContext) Sender() *tele.User { return f.sender }
func (f *fakeContext) Update() tele.Update {
	return tele.Update{ID: 10, Message: &tele.Message{Text: f.text, Chat: f.chat, Sender: f.sender}}
}
func (f *fakeContext) Get(key string) interface{}      { return f.values[key] }
func (f *fakeContext) Set(key string, val interface{}) { f.values[key] = val }

type fakeFSM struct {
	active map[int64]bool
	got    []string
}

func (f *fakeFSM) InProgress(chatID int64) bool { return f.active[chatID] }
func (f *fakeFSM) ManagerHandler(c tele.Context) error {
	f.got = append(f.got, c.Text())
	return nil
}

func registry(t *testing.T, calls *[]string) *tg.Registry {
	t.Helper()
	reg := tg.NewRegistry()
	reg.RegisterCommand("/counters", commands.Command{
		Description: "list",
		Aliases:     []string{"c"},
		Handler:     func(tele.Context) error { *calls = append(*calls, "counters"); return nil },
	})
	reg.RegisterCommand("/stats", commands.Command{
		Description: "stats",
		AdminOnly:   true,
		Hidden:      true,
		Handler:     func(tele.Context) error { *calls = append(*calls, "stats"); return nil },
	})
	reg.RegisterCommand("/boom", commands.Command{
		Description: "panics",
		Handler:     func(tele.Context) error { panic("kaboom") },
	})
	return reg
}

func routeMap(routes []tg.Route) map[any]tele.HandlerFunc {
	m := make(map[any]tele.HandlerFunc, len(routes))
	for _, r := range routes {
		m[r.Endpoint] = r.Handler
	}
	return m
}

func TestTextRoutesPrefersParkedConversation(t *testing.T) {
	var calls []string
	fsm := &fakeFSM{active: map[int64]bool{1: true}}
	routes := TextRoutes(fsm, registry(t, &calls), TextOptions{})
	require.Len(t, routes, 1)
	require.Equal(t, tele.OnText, routes[0].Endpoint)
	h := routes[0].Handler

	require.NoError(t, h(newFakeContext(1, "Coffee")))
	require.NoError(t, h(newFakeContext(2, "ignored")))
	assert.Equal(t, []string{"Coffee"}, fsm.got)
	assert.Empty(t, calls)
}

func TestTextRoutesResolvesAliases(t *testing.T) {
	var calls []string
	fsm := &fakeFSM{active: map[int64]bool{1: true}}
	h := TextRoutes(fsm, registry(t, &calls), TextOptions{})[0].Handler

	require.NoError(t, h(newFakeContext(1, "/c")))
	require.NoError(t, h(newFakeContext(1, "/stats")))
	assert.Equal(t, []string{"counters"}, calls)
	assert.Equal(t, []string{"/stats"}, fsm.got, "admin commands are never reached through text")
}

func TestTextRoutesUnknownText(t *testing.T) {
	var unknown int
	h := TextRoutes(nil, nil, TextOptions{
		UnknownText: func(tele.Context) error { unknown++; return nil },
	})[0].Handler

	require.NoError(t, h(newFakeContext(3, "hello")))
	assert.Equal(t, 1, unknown)
}

func TestCommandRoutesGuardAdminOnly(t *testing.T) {
	var calls []string
	var rejected int
	routes := routeMap(CommandRoutes(registry(t, &calls), CommandRouteOptions{
		AdminID:       99,
		OnAdminReject: func(tele.Context) error { rejected++; return nil },
	}))
	require.Len(t, routes, 3)

	require.NoError(t, routes["/stats"](newFakeContext(5, "/stats")))
	assert.Equal(t, 1, rejected)
	assert.Empty(t, calls)

	require.NoError(t, routes["/stats"](newFakeContext(99, "/stats")))
	assert.Equal(t, []string{"stats"}, calls)
}

func TestCommandRoutesRecoverPanics(t *testing.T) {
	var calls []string
	routes := routeMap(CommandRoutes(registry(t, &calls), CommandRouteOptions{}))

	err := routes["/boom"](newFakeContext(1, "/boom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

type codedErr struct{}

func (codedErr) Error() string { return "bad" }
func (codedErr) Code() string  { return "not found" }

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "NOT_FOUND", errorCode(fmt.Errorf("wrap: %w", codedErr{})))
	assert.Equal(t, "UNKNOWN", errorCode(errors.New("plain")))
}

func TestHandlerName(t *testing.T) {
	assert.Equal(t, "createcounter", handlerName("/CreateCounter"))
	assert.Equal(t, "unknown", handlerName(" / "))
}
