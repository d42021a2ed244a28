package handlers

import (
	"fmt"
	"strings"
	"time"

	"jobrelay/internal/shared"
)

// maxLogLines ограничивает ответ /logs: сообщение Telegram не длиннее 4096 символов.
const maxLogLines = 20

func (c *Commands) jobs() string {
	jobs := c.svc.Jobs()
	if len(jobs) == 0 {
		return "активных задач нет"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "активных задач: %d\n", len(jobs))
	for _, j := range jobs {
		fmt.Fprintf(&b, "\n%s\nсостояние: %s, следующий запуск: %s",
			j.Summary(), j.State, j.NextRun.Format(time.DateTime))
	}
	return b.String()
}

func (c *Commands) logs(id string) string {
	if id == "" {
		return "укажите id: /logs <id>"
	}
	entries := c.svc.Logs(id)
	if len(entries) == 0 {
		return "записей для " + id + " нет"
	}
	skipped := 0
	if len(entries) > maxLogLines {
		skipped = len(entries) - maxLogLines
		entries = entries[skipped:]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "журнал %s", id)
	if skipped > 0 {
		fmt.Fprintf(&b, " (последние %d из %d)", maxLogLines, skipped+maxLogLines)
	}
	for _, e := range entries {
		p := e.Payload
		line := string(p.Event)
		switch {
		case p.Error != "":
			line += " ошибка: " + p.Error
		case p.Message != "":
			line += ": " + p.Message
		case p.Title != "":
			line += " " + p.Title + " ok"
		}
		fmt.Fprintf(&b, "\n%s %s", e.Timestamp.Format(time.TimeOnly), line)
	}
	return b.String()
}

func (c *Commands) cancel(id string) string {
	if id == "" {
		return "укажите id: /cancel <id>"
	}
	err := c.svc.Cancel(id)
	switch {
	case err == nil:
		c.log.Info("job cancelled via telegram", "job_id", id)
		return "задача " + id + " остановлена"
	case shared.IsNotFound(err):
		return "задача " + id + " не найдена"
	default:
		c.log.Error("cancel job", "job_id", id, "err", err)
		return "не удалось остановить задачу"
	}
}
