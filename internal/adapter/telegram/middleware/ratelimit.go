package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"jobrelay/internal/adapter/telegram"
	"jobrelay/internal/platform/clock"
)

// RateLimiter ограничивает частоту запросов одного пользователя.
type RateLimiter struct {
	mu    sync.Mutex
	last  map[int64]time.Time
	rate  time.Duration
	clock clock.Clock
}

// NewRateLimiter создаёт лимитер: не чаще одного запроса за rate.
func NewRateLimiter(rate time.Duration, clk clock.Clock) *RateLimiter {
	if clk == nil {
		clk = clock.New()
	}
	return &RateLimiter{last: make(map[int64]time.Time), rate: rate, clock: clk}
}

// Allow возвращает false, если пользователь превысил лимит.
func (r *RateLimiter) Allow(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	if t, ok := r.last[userID]; ok && now.Sub(t) < r.rate {
		return false
	}
	r.last[userID] = now
	return true
}

// Middleware проверяет лимит перед вызовом следующего хендлера.
func (r *RateLimiter) Middleware(next telegram.HandlerFunc) telegram.HandlerFunc {
	return func(ctx context.Context, s telegram.Sender, upd *models.Update) {
		uid := telegram.UserID(upd)
		if uid != 0 && !r.Allow(uid) {
			if chat := telegram.ChatID(upd); chat != 0 {
				_, _ = s.SendMessage(ctx, &bot.SendMessageParams{ChatID: chat, Text: "слишком часто"})
			}
			return
		}
		next(ctx, s, upd)
	}
}
