// Package handlers реализует команды бота управления задачами.
package handlers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"jobrelay/internal/adapter/scheduler"
	"jobrelay/internal/adapter/telegram"
	"jobrelay/internal/domain/job"
)

// Service - часть сценария регистрации, нужная боту.
type Service interface {
	Jobs() []scheduler.JobInfo
	Logs(jobID string) []job.Entry
	Cancel(jobID string) error
}

// Commands маршрутизирует команды к обработчикам.
type Commands struct {
	svc Service
	log *slog.Logger
}

// NewCommands создаёт обработчик команд.
func NewCommands(svc Service, log *slog.Logger) *Commands {
	if log == nil {
		log = slog.Default()
	}
	return &Commands{svc: svc, log: log.With("component", "telegram")}
}

// Handle разбирает команду из сообщения и вызывает обработчик.
// Сообщения без команды игнорируются.
func (c *Commands) Handle(ctx context.Context, s telegram.Sender, upd *models.Update) {
	msg := upd.Message
	if msg == nil || !strings.HasPrefix(msg.Text, "/") {
		return
	}
	fields := strings.Fields(msg.Text)
	// /jobs@relay_bot в групповых чатах
	cmd, _, _ := strings.Cut(strings.TrimPrefix(fields[0], "/"), "@")
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	var text string
	switch cmd {
	case "start", "help":
		text = startText
	case "ping":
		text = "pong"
	case "jobs":
		text = c.jobs()
	case "logs":
		text = c.logs(arg)
	case "cancel":
		text = c.cancel(arg)
	default:
		text = "неизвестная команда, см. /help"
	}
	c.reply(ctx, s, msg, text)
}

func (c *Commands) reply(ctx context.Context, s telegram.Sender, msg *models.Message, text string) {
	_, err := s.SendMessage(ctx, &bot.SendMessageParams{ChatID: msg.Chat.ID, Text: text})
	if err != nil {
		c.log.Warn("send reply", "chat_id", msg.Chat.ID, "err", err)
	}
}
