// Package middleware содержит телеграм-middleware: ACL по списку разрешённых
// пользователей и ограничение частоты запросов.
package middleware

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"jobrelay/internal/adapter/telegram"
)

// ACL проверяет доступ по списку разрешённых Telegram user IDs.
type ACL struct{ allowed map[int64]struct{} }

// NewACL создаёт ACL по списку ID.
func NewACL(ids []int64) *ACL {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return &ACL{allowed: m}
}

// IsAllowed сообщает, имеет ли пользователь доступ.
func (a *ACL) IsAllowed(id int64) bool { _, ok := a.allowed[id]; return ok }

// Middleware блокирует выполнение хендлера для неразрешённых пользователей.
// Обновления без отправителя отбрасываются.
func (a *ACL) Middleware(next telegram.HandlerFunc) telegram.HandlerFunc {
	return func(ctx context.Context, s telegram.Sender, upd *models.Update) {
		uid := telegram.UserID(upd)
		if uid != 0 && a.IsAllowed(uid) {
			next(ctx, s, upd)
			return
		}
		if chat := telegram.ChatID(upd); chat != 0 && s != nil {
			_, _ = s.SendMessage(ctx, &bot.SendMessageParams{ChatID: chat, Text: "доступ запрещен"})
		}
	}
}

// ParseAllowedIDs парсит список ID из строки (разделители: запятая, пробелы, переносы).
func ParseAllowedIDs(s string) ([]int64, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\t'
	})
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse telegram id %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}
