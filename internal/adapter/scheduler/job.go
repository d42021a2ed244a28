package scheduler

import (
	"fmt"
	"time"

	"jobrelay/internal/domain/job"
	"jobrelay/internal/shared"
)

// State описывает фазу жизненного цикла задачи.
type State int

const (
	// Armed - задача ждёт первого срабатывания по времени суток.
	Armed State = iota
	// Repeating - задача повторяется с фиксированным интервалом.
	Repeating
	// Terminated - задача снята и больше не сработает.
	Terminated
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Repeating:
		return "repeating"
	default:
		return "terminated"
	}
}

// MarshalText позволяет отдавать состояние строкой в JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Reason объясняет, почему задача завершилась.
type Reason string

const (
	ReasonCompleted    Reason = "completed"
	ReasonLimitReached Reason = "limit_reached"
	ReasonCancelled    Reason = "cancelled"
)

// Spec описывает задачу для Schedule.
type Spec struct {
	ID       string
	Requests []job.Request
	At       job.TimeOfDay
	// RetryInterval - период повторов после первого срабатывания; 0 - без повторов.
	RetryInterval time.Duration
	// RetryLimit ограничивает число повторов; nil - без ограничения.
	RetryLimit *int
}

func (s Spec) validate() error {
	switch {
	case s.ID == "":
		return shared.Wrap(shared.ErrValidation, "scheduler: empty job id")
	case len(s.Requests) == 0:
		return shared.Wrapf(shared.ErrValidation, "scheduler: job %s has no requests", s.ID)
	case s.RetryInterval < 0:
		return shared.Wrapf(shared.ErrValidation, "scheduler: job %s: negative retry interval", s.ID)
	case s.RetryLimit != nil && *s.RetryLimit < 0:
		return shared.Wrapf(shared.ErrValidation, "scheduler: job %s: negative retry limit", s.ID)
	}
	return nil
}

// repeats сообщает, нужен ли интервальный таймер после первого срабатывания.
func (s Spec) repeats() bool {
	return s.RetryInterval > 0 && (s.RetryLimit == nil || *s.RetryLimit > 0)
}

// JobInfo - снимок состояния живой задачи.
type JobInfo struct {
	ID             string        `json:"id"`
	Requests       int           `json:"requests"`
	Titles         []string      `json:"titles"`
	At             string        `json:"scheduledTime"`
	RetryInterval  time.Duration `json:"-"`
	RetrySeconds   int           `json:"retryInterval,omitempty"`
	RetryLimit     *int          `json:"retryCount,omitempty"`
	RetriesElapsed int           `json:"retriesElapsed"`
	State          State         `json:"state"`
	NextRun        time.Time     `json:"nextRun"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// Summary возвращает короткое описание задачи для уведомлений.
func (i JobInfo) Summary() string {
	s := fmt.Sprintf("%s: %d request(s) at %s", i.ID, i.Requests, i.At)
	if i.RetryInterval > 0 {
		s += fmt.Sprintf(", every %ds", i.RetrySeconds)
		if i.RetryLimit != nil {
			s += fmt.Sprintf(" (%d/%d retries)", i.RetriesElapsed, *i.RetryLimit)
		}
	}
	return s
}
