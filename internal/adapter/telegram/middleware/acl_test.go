package middleware

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobrelay/internal/adapter/telegram"
	"jobrelay/internal/platform/clock"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []*bot.SendMessageParams
}

func (f *fakeSender) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, p)
	return &models.Message{}, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, p := range f.sent {
		out = append(out, p.Text)
	}
	return out
}

func message(user, chat int64, text string) *models.Update {
	return &models.Update{Message: &models.Message{
		Text: text,
		Chat: models.Chat{ID: chat},
		From: &models.User{ID: user},
	}}
}

func counting(n *int) telegram.HandlerFunc {
	return func(context.Context, telegram.Sender, *models.Update) { *n++ }
}

func TestParseAllowedIDs(t *testing.T) {
	ids, err := ParseAllowedIDs("1, 2,3,\n4;-100200")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4, -100200}, ids)

	ids, err = ParseAllowedIDs("")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = ParseAllowedIDs("1,abc")
	assert.ErrorContains(t, err, `"abc"`)
}

func TestACL_IsAllowed(t *testing.T) {
	a := NewACL([]int64{10, 20, 30})
	assert.True(t, a.IsAllowed(10))
	assert.False(t, a.IsAllowed(11))
}

func TestACL_Middleware(t *testing.T) {
	s := &fakeSender{}
	var calls int
	h := NewACL([]int64{10}).Middleware(counting(&calls))

	h(context.Background(), s, message(10, 1, "/jobs"))
	assert.Equal(t, 1, calls)
	assert.Empty(t, s.texts())

	h(context.Background(), s, message(11, 1, "/jobs"))
	assert.Equal(t, 1, calls, "чужой пользователь не должен пройти")
	assert.Equal(t, []string{"доступ запрещен"}, s.texts())

	h(context.Background(), s, &models.Update{})
	assert.Equal(t, 1, calls)
}

func TestRateLimiter(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	rl := NewRateLimiter(time.Second, fc)
	s := &fakeSender{}
	var calls int
	h := rl.Middleware(counting(&calls))

	h(context.Background(), s, message(1, 5, "/ping"))
	h(context.Background(), s, message(1, 5, "/ping"))
	h(context.Background(), s, message(2, 6, "/ping"))
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"слишком часто"}, s.texts())

	fc.Advance(time.Second)
	h(context.Background(), s, message(1, 5, "/ping"))
	assert.Equal(t, 3, calls)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next telegram.HandlerFunc) telegram.HandlerFunc {
			return func(ctx context.Context, s telegram.Sender, upd *models.Update) {
				order = append(order, name)
				next(ctx, s, upd)
			}
		}
	}
	h := Chain(func(context.Context, telegram.Sender, *models.Update) { order = append(order, "handler") }, mw("a"), mw("b"))
	h(context.Background(), &fakeSender{}, message(1, 1, "/start"))
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}
