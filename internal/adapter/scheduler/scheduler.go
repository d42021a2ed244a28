package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"jobrelay/internal/domain/job"
	"jobrelay/internal/platform/clock"
	"jobrelay/internal/shared"
)

// Runner выполняет пакет запросов одного срабатывания.
type Runner interface {
	Run(ctx context.Context, jobID string, reqs []job.Request) []job.Outcome
}

// RunnerFunc адаптирует функцию к интерфейсу Runner.
type RunnerFunc func(ctx context.Context, jobID string, reqs []job.Request) []job.Outcome

// Run вызывает f.
func (f RunnerFunc) Run(ctx context.Context, jobID string, reqs []job.Request) []job.Outcome {
	return f(ctx, jobID, reqs)
}

// Appender принимает служебные записи журнала (отмена, достижение лимита).
type Appender interface {
	Append(jobID string, p job.Payload) job.Entry
}

// JobHooks содержит необязательные хуки для наблюдаемости.
type JobHooks struct {
	// OnFire вызывается перед каждым срабатыванием; firing 0 - первое срабатывание.
	OnFire func(jobID string, firing int)
	// OnTerminated вызывается, когда задача покидает множество живых задач.
	OnTerminated func(info JobInfo, reason Reason)
	// OnPanic вызывается после перехвата паники в срабатывании.
	OnPanic func(jobID string, recovered any)
}

// Config содержит конфигурацию планировщика.
type Config struct {
	Logger   *slog.Logger
	Clock    clock.Clock
	Location *time.Location
	Runner   Runner
	Log      Appender
	JobHooks JobHooks
}

// liveJob - состояние одной живой задачи. Поля state, retries и nextRun
// защищены мьютексом планировщика.
type liveJob struct {
	spec    Spec
	ctx     context.Context
	cancel  context.CancelFunc
	state   State
	retries int
	nextRun time.Time
	created time.Time
}

func (j *liveJob) info() JobInfo {
	titles := make([]string, len(j.spec.Requests))
	for i, r := range j.spec.Requests {
		titles[i] = r.DisplayTitle()
	}
	var limit *int
	if j.spec.RetryLimit != nil {
		v := *j.spec.RetryLimit
		limit = &v
	}
	return JobInfo{
		ID:             j.spec.ID,
		Requests:       len(j.spec.Requests),
		Titles:         titles,
		At:             j.spec.At.String(),
		RetryInterval:  j.spec.RetryInterval,
		RetrySeconds:   int(j.spec.RetryInterval / time.Second),
		RetryLimit:     limit,
		RetriesElapsed: j.retries,
		State:          j.state,
		NextRun:        j.nextRun,
		CreatedAt:      j.created,
	}
}

// Scheduler владеет отображением id задачи -> живой таймер.
// На каждый id приходится не больше одного таймера.
type Scheduler struct {
	logger *slog.Logger
	clock  clock.Clock
	loc    *time.Location
	runner Runner
	log    Appender
	hooks  JobHooks
	parser cron.Parser

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	jobs      map[string]*liveJob
	started   bool
	stopOnce  sync.Once
	startOnce sync.Once
}

// New создает новый экземпляр планировщика с background контекстом.
func New(cfg Config) *Scheduler {
	return NewWithContext(context.Background(), cfg)
}

// NewWithContext создает планировщик, который останавливается вместе с parentCtx.
// Контекст планировщика передаётся в каждое срабатывание: отмена отдельной
// задачи не прерывает уже начатые запросы, их прерывает только остановка.
func NewWithContext(parentCtx context.Context, cfg Config) *Scheduler {
	ctx, cancel := context.WithCancel(parentCtx)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	runner := cfg.Runner
	if runner == nil {
		runner = RunnerFunc(func(context.Context, string, []job.Request) []job.Outcome { return nil })
	}

	return &Scheduler{
		logger: logger.With("component", "scheduler"),
		clock:  clk,
		loc:    loc,
		runner: runner,
		log:    cfg.Log,
		hooks:  cfg.JobHooks,
		parser: cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*liveJob),
	}
}

// NextFire возвращает ближайший момент строго после now, когда наступит время at
// в часовом поясе планировщика. Время, не лежащее строго в будущем, переносится на завтра.
func (s *Scheduler) NextFire(now time.Time, at job.TimeOfDay) (time.Time, error) {
	sched, err := s.parser.Parse(at.CronSpec())
	if err != nil {
		return time.Time{}, shared.MarkKind(fmt.Errorf("scheduler: time of day %s: %w", at, err), shared.KindValidation)
	}
	return sched.Next(now.In(s.loc)), nil
}

// Schedule регистрирует задачу и возвращает момент первого срабатывания.
// Если под тем же id уже есть живая задача, она снимается до установки новой.
func (s *Scheduler) Schedule(ctx context.Context, spec Spec) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	if err := spec.validate(); err != nil {
		return time.Time{}, err
	}
	spec.Requests = job.CloneAll(spec.Requests)
	if spec.RetryLimit != nil {
		v := *spec.RetryLimit
		spec.RetryLimit = &v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.IsRunning() {
		return time.Time{}, shared.Wrap(shared.ErrUnavailable, "scheduler stopped")
	}

	now := s.clock.Now()
	next, err := s.NextFire(now, spec.At)
	if err != nil {
		return time.Time{}, err
	}
	if old, ok := s.jobs[spec.ID]; ok {
		old.cancel()
		delete(s.jobs, spec.ID)
		s.logger.Info("job replaced", "id", spec.ID)
	}
	jctx, cancel := context.WithCancel(s.ctx)
	j := &liveJob{
		spec:    spec,
		ctx:     jctx,
		cancel:  cancel,
		state:   Armed,
		nextRun: next,
		created: now,
	}
	s.jobs[spec.ID] = j
	if s.started {
		s.launchLocked(j)
	}

	s.logger.Info("job scheduled",
		"id", spec.ID,
		"requests", len(spec.Requests),
		"at", spec.At.String(),
		"next_run", j.nextRun,
		"retry_interval", spec.RetryInterval,
		"retry_limit", spec.RetryLimit)
	return j.nextRun, nil
}

// Cancel снимает живую задачу и пишет запись об отмене.
// Возвращает false, если живой задачи с таким id нет; запись тогда не пишется.
func (s *Scheduler) Cancel(jobID string) bool {
	s.mu.Lock()
	j, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.jobs, jobID)
	j.state = Terminated
	info := j.info()
	s.mu.Unlock()

	j.cancel()
	s.append(jobID, job.Payload{Event: job.EventCancelled, Message: "Job manually cancelled"})
	s.logger.Info("job cancelled", "id", jobID)
	s.terminated(info, ReasonCancelled)
	return true
}

// Get возвращает снимок живой задачи.
func (s *Scheduler) Get(jobID string) (JobInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return JobInfo{}, false
	}
	return j.info(), true
}

// Jobs возвращает снимки всех живых задач, отсортированные по id.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.info())
	}
	s.mu.Unlock()
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// Start запускает таймеры. Задачи, добавленные до Start, начинают ждать
// своего времени с этого момента. Повторные вызовы ничего не делают.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.logger.Info("starting scheduler")
		s.mu.Lock()
		s.started = true
		for _, j := range s.jobs {
			s.launchLocked(j)
		}
		s.mu.Unlock()

		// Запускаем горутину для отслеживания контекста
		go func() {
			<-s.ctx.Done()
			s.stopOnce.Do(s.stop)
		}()
	})
}

// Stop останавливает планировщик и ждет завершения всех срабатываний.
func (s *Scheduler) Stop() {
	if !s.IsRunning() {
		return // Уже остановлен
	}
	s.logger.Info("stopping scheduler")
	s.cancel()
	s.stopOnce.Do(s.stop)
}

// StopContext останавливает планировщик с учетом контекста дедлайна.
// Если контекст истекает раньше, остановка всё равно доводится до конца.
func (s *Scheduler) StopContext(ctx context.Context) error {
	if !s.IsRunning() {
		return nil // Уже остановлен
	}

	s.logger.Info("stopping scheduler with deadline")
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.stopOnce.Do(s.stop)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped gracefully within deadline")
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler stop deadline exceeded, but shutdown will complete")
		<-done
		return ctx.Err()
	}
}

// stop выполняет фактическую остановку.
func (s *Scheduler) stop() {
	s.mu.Lock()
	for id, j := range s.jobs {
		j.cancel()
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// IsRunning возвращает true, пока планировщик не остановлен.
func (s *Scheduler) IsRunning() bool {
	select {
	case <-s.ctx.Done():
		return false
	default:
		return true
	}
}

func (s *Scheduler) launchLocked(j *liveJob) {
	s.wg.Add(1)
	go s.loop(j)
}

// loop ждёт первого срабатывания, затем при необходимости переходит к повторам.
func (s *Scheduler) loop(j *liveJob) {
	defer s.wg.Done()
	id := j.spec.ID

	s.mu.Lock()
	wait := j.nextRun.Sub(s.clock.Now())
	s.mu.Unlock()

	timer := s.clock.NewTimer(wait)
	select {
	case <-j.ctx.Done():
		timer.Stop()
		return
	case <-timer.C():
	}

	if !s.fire(j, 0) {
		return
	}

	s.mu.Lock()
	if s.jobs[id] != j {
		s.mu.Unlock()
		return
	}
	if !j.spec.repeats() {
		delete(s.jobs, id)
		j.state = Terminated
		info := j.info()
		s.mu.Unlock()
		j.cancel()
		s.logger.Info("job completed", "id", id)
		s.terminated(info, ReasonCompleted)
		return
	}
	j.state = Repeating
	ticker := s.clock.NewTicker(j.spec.RetryInterval)
	j.nextRun = s.clock.Now().Add(j.spec.RetryInterval)
	s.mu.Unlock()
	defer ticker.Stop()

	for firing := 1; ; firing++ {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C():
		}

		if !s.fire(j, firing) {
			return
		}

		s.mu.Lock()
		if s.jobs[id] != j {
			s.mu.Unlock()
			return
		}
		j.retries++
		j.nextRun = s.clock.Now().Add(j.spec.RetryInterval)
		if limit := j.spec.RetryLimit; limit != nil && j.retries >= *limit {
			delete(s.jobs, id)
			j.state = Terminated
			info := j.info()
			s.mu.Unlock()
			j.cancel()
			s.append(id, job.Payload{
				Event:   job.EventLimitReached,
				Message: fmt.Sprintf("Retry limit of %d reached, job stopped", *limit),
			})
			s.logger.Info("job retry limit reached", "id", id, "retries", info.RetriesElapsed)
			s.terminated(info, ReasonLimitReached)
			return
		}
		s.mu.Unlock()
	}
}

// fire выполняет пакет, если задача всё ещё живая. Возвращает false, если
// задачу успели снять или заменить.
func (s *Scheduler) fire(j *liveJob, firing int) bool {
	s.mu.Lock()
	live := s.jobs[j.spec.ID] == j && j.ctx.Err() == nil
	s.mu.Unlock()
	if !live {
		return false
	}

	if s.hooks.OnFire != nil {
		s.hooks.OnFire(j.spec.ID, firing)
	}

	start := s.clock.Now()
	outs := s.runBatch(j)
	s.logger.Info("job fired",
		"id", j.spec.ID,
		"firing", firing,
		"ok", job.Succeeded(outs),
		"total", len(j.spec.Requests),
		"duration", s.clock.Now().Sub(start))
	return true
}

func (s *Scheduler) runBatch(j *liveJob) (outs []job.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "id", j.spec.ID, "panic", r)
			if s.hooks.OnPanic != nil {
				s.hooks.OnPanic(j.spec.ID, r)
			}
		}
	}()
	return s.runner.Run(s.ctx, j.spec.ID, j.spec.Requests)
}

func (s *Scheduler) append(jobID string, p job.Payload) {
	if s.log != nil {
		s.log.Append(jobID, p)
	}
}

func (s *Scheduler) terminated(info JobInfo, reason Reason) {
	if s.hooks.OnTerminated != nil {
		s.hooks.OnTerminated(info, reason)
	}
}
