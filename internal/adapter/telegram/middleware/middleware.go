package middleware

import "jobrelay/internal/adapter/telegram"

// Middleware оборачивает telegram.HandlerFunc.
type Middleware func(telegram.HandlerFunc) telegram.HandlerFunc

// Chain применяет middleware по порядку: первый в списке выполняется первым.
func Chain(h telegram.HandlerFunc, mws ...Middleware) telegram.HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
