package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobrelay/internal/adapter/scheduler"
	"jobrelay/internal/adapter/telegram/handlers"
	"jobrelay/internal/domain/job"
	"jobrelay/internal/shared"
)

type fakeSender struct{ sent []*bot.SendMessageParams }

func (f *fakeSender) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.sent = append(f.sent, p)
	return &models.Message{}, nil
}

type fakeService struct {
	jobs      []scheduler.JobInfo
	logs      map[string][]job.Entry
	cancelled []string
	cancelErr error
}

func (f *fakeService) Jobs() []scheduler.JobInfo  { return f.jobs }
func (f *fakeService) Logs(id string) []job.Entry { return f.logs[id] }
func (f *fakeService) Cancel(id string) error {
	f.cancelled = append(f.cancelled, id)
	return f.cancelErr
}

var at = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func run(t *testing.T, svc handlers.Service, text string) string {
	t.Helper()
	s := &fakeSender{}
	c := handlers.NewCommands(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.Handle(context.Background(), s, &models.Update{Message: &models.Message{
		Text: text,
		Chat: models.Chat{ID: 42},
		From: &models.User{ID: 7},
	}})
	require.Len(t, s.sent, 1)
	assert.Equal(t, int64(42), s.sent[0].ChatID)
	return s.sent[0].Text
}

func TestStartAndPing(t *testing.T) {
	svc := &fakeService{}
	assert.Contains(t, run(t, svc, "/start"), "/cancel <id>")
	assert.Equal(t, "pong", run(t, svc, "/ping"))
	assert.Equal(t, "pong", run(t, svc, "/ping@relay_bot"))
	assert.Contains(t, run(t, svc, "/unknown"), "неизвестная команда")
}

func TestIgnoresPlainText(t *testing.T) {
	s := &fakeSender{}
	c := handlers.NewCommands(&fakeService{}, nil)
	c.Handle(context.Background(), s, &models.Update{Message: &models.Message{Text: "hello"}})
	c.Handle(context.Background(), s, &models.Update{})
	assert.Empty(t, s.sent)
}

func TestJobs(t *testing.T) {
	assert.Equal(t, "активных задач нет", run(t, &fakeService{}, "/jobs"))

	limit := 3
	svc := &fakeService{jobs: []scheduler.JobInfo{{
		ID: "job-1", Requests: 2, At: "13:00:00",
		RetryInterval: 10 * time.Second, RetrySeconds: 10, RetryLimit: &limit, RetriesElapsed: 1,
		State: scheduler.Repeating, NextRun: at,
	}}}
	text := run(t, svc, "/jobs")
	assert.Contains(t, text, "активных задач: 1")
	assert.Contains(t, text, "job-1: 2 request(s) at 13:00:00, every 10s (1/3 retries)")
	assert.Contains(t, text, "состояние: repeating")
	assert.Contains(t, text, "2026-03-10 12:00:00")
}

func TestLogs(t *testing.T) {
	svc := &fakeService{logs: map[string][]job.Entry{
		"job-1": {
			{Timestamp: at, JobID: "job-1", Payload: job.Payload{Event: job.EventDispatch, Title: "math"}},
			{Timestamp: at.Add(time.Second), JobID: "job-1", Payload: job.Payload{Event: job.EventDispatch, Title: "art", Error: "connection refused"}},
			{Timestamp: at.Add(2 * time.Second), JobID: "job-1", Payload: job.Payload{Event: job.EventCancelled, Message: "Job manually cancelled"}},
		},
	}}
	text := run(t, svc, "/logs job-1")
	assert.Equal(t, "журнал job-1\n12:00:00 dispatch math ok\n12:00:01 dispatch ошибка: connection refused\n12:00:02 cancelled: Job manually cancelled", text)

	assert.Equal(t, "укажите id: /logs <id>", run(t, svc, "/logs"))
	assert.Equal(t, "записей для job-2 нет", run(t, svc, "/logs job-2"))
}

func TestLogsTruncated(t *testing.T) {
	var entries []job.Entry
	for i := 0; i < 25; i++ {
		entries = append(entries, job.Entry{Timestamp: at, Payload: job.Payload{Event: job.EventDispatch, Title: fmt.Sprint(i)}})
	}
	text := run(t, &fakeService{logs: map[string][]job.Entry{"j": entries}}, "/logs j")
	assert.Contains(t, text, "(последние 20 из 25)")
	assert.NotContains(t, text, "dispatch 4 ok")
	assert.Contains(t, text, "dispatch 24 ok")
}

func TestCancel(t *testing.T) {
	svc := &fakeService{}
	assert.Equal(t, "задача job-1 остановлена", run(t, svc, "/cancel job-1"))
	assert.Equal(t, []string{"job-1"}, svc.cancelled)

	svc.cancelErr = shared.Wrap(shared.ErrNotFound, "job job-2")
	assert.Equal(t, "задача job-2 не найдена", run(t, svc, "/cancel job-2"))

	svc.cancelErr = errors.New("scheduler busy")
	assert.Equal(t, "не удалось остановить задачу", run(t, svc, "/cancel job-3"))

	assert.Equal(t, "укажите id: /cancel <id>", run(t, svc, "/cancel"))
	assert.Len(t, svc.cancelled, 3)
}
