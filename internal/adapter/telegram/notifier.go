package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-telegram/bot"

	"jobrelay/internal/adapter/scheduler"
	"jobrelay/pkg/retry"
)

type notice struct {
	info   scheduler.JobInfo
	reason scheduler.Reason
}

// Notifier рассылает сообщения о завершении задач в заданные чаты.
// Отправка идёт в отдельной горутине, планировщик не блокируется.
type Notifier struct {
	sender Sender
	chats  []int64
	log    *slog.Logger
	retry  retry.Config

	queue  chan notice
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NotifierOption настраивает Notifier.
type NotifierOption func(*Notifier)

// WithNotifierLogger задаёт логгер.
func WithNotifierLogger(l *slog.Logger) NotifierOption {
	return func(n *Notifier) { n.log = l }
}

// WithNotifierRetry задаёт политику повторов отправки.
func WithNotifierRetry(cfg retry.Config) NotifierOption {
	return func(n *Notifier) { n.retry = cfg }
}

// NewNotifier создаёт Notifier с очередью размера queue и запускает воркер.
func NewNotifier(s Sender, chats []int64, queue int, opts ...NotifierOption) *Notifier {
	if queue < 1 {
		queue = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	n := &Notifier{
		sender: s,
		chats:  append([]int64(nil), chats...),
		log:    slog.Default(),
		retry:  retry.NotifyConfig(),
		queue:  make(chan notice, queue),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(n)
	}
	n.log = n.log.With("component", "notifier")
	go n.run()
	return n
}

// OnTerminated ставит уведомление в очередь; подходит как scheduler.JobHooks.OnTerminated.
// При переполненной очереди уведомление отбрасывается с предупреждением в лог.
func (n *Notifier) OnTerminated(info scheduler.JobInfo, reason scheduler.Reason) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed || len(n.chats) == 0 {
		return
	}
	select {
	case n.queue <- notice{info: info, reason: reason}:
	default:
		n.log.Warn("notification dropped, queue full", "job_id", info.ID, "reason", reason)
	}
}

// Close перестаёт принимать уведомления и ждёт отправки очереди.
// Если ctx истекает раньше, незавершённые отправки прерываются.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	select {
	case <-n.done:
		n.cancel()
		return nil
	case <-ctx.Done():
		n.cancel()
		<-n.done
		return ctx.Err()
	}
}

func (n *Notifier) run() {
	defer close(n.done)
	for item := range n.queue {
		text := Notice(item.info, item.reason)
		for _, chat := range n.chats {
			err := retry.Do(n.ctx, n.retry, func(ctx context.Context) error {
				_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{ChatID: chat, Text: text})
				return err
			})
			if err != nil {
				n.log.Error("send notification", "job_id", item.info.ID, "chat_id", chat, "err", err)
			}
		}
	}
}

// Notice форматирует текст уведомления.
func Notice(info scheduler.JobInfo, reason scheduler.Reason) string {
	var what string
	switch reason {
	case scheduler.ReasonCompleted:
		what = "выполнена"
	case scheduler.ReasonLimitReached:
		what = "остановлена: достигнут лимит повторов"
	case scheduler.ReasonCancelled:
		what = "отменена"
	default:
		what = "завершена (" + string(reason) + ")"
	}
	return fmt.Sprintf("задача %s\n%s", what, info.Summary())
}
