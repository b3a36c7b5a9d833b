package lock

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// DefaultInterval пауза между попытками захвата по умолчанию
const DefaultInterval = 500 * time.Millisecond

// Sleeper ожидает d или отмены ctx
type Sleeper func(ctx context.Context, d time.Duration) error

// Backoff политика повторных попыток захвата занятого документа.
// Нулевые MaxAttempts и Deadline означают отсутствие соответствующего ограничения.
type Backoff struct {
	Interval    time.Duration
	Jitter      time.Duration
	MaxAttempts int
	Deadline    time.Duration

	// Sleep и Now подменяются в тестах
	Sleep Sleeper
	Now   func() time.Time
}

// DefaultBackoff политика без ограничений с интервалом DefaultInterval
func DefaultBackoff() Backoff {
	return Backoff{Interval: DefaultInterval}
}

// Start начинает отсчет попыток для одной операции
func (b Backoff) Start() *Retry {
	if b.Interval <= 0 {
		b.Interval = DefaultInterval
	}
	if b.Sleep == nil {
		b.Sleep = sleepContext
	}
	if b.Now == nil {
		b.Now = time.Now
	}
	return &Retry{policy: b, started: b.Now(), attempts: 1}
}

// Retry состояние повторов одной операции
type Retry struct {
	policy   Backoff
	started  time.Time
	attempts int
}

// Attempts количество начатых попыток
func (r *Retry) Attempts() int {
	return r.attempts
}

// Next ждет перед следующей попыткой.
// Возвращает ErrRetriesExhausted, если следующая попытка выходит за пределы политики,
// и ошибку контекста, если ожидание прервано.
func (r *Retry) Next(ctx context.Context) error {
	p := r.policy
	if p.MaxAttempts > 0 && r.attempts >= p.MaxAttempts {
		return fmt.Errorf("%w: %d attempts", ErrRetriesExhausted, r.attempts)
	}

	delay := r.delay()
	if p.Deadline > 0 && p.Now().Sub(r.started)+delay > p.Deadline {
		return fmt.Errorf("%w: deadline %s reached after %d attempts", ErrRetriesExhausted, p.Deadline, r.attempts)
	}

	if err := p.Sleep(ctx, delay); err != nil {
		return err
	}
	r.attempts++
	return nil
}

func (r *Retry) delay() time.Duration {
	d := r.policy.Interval
	if r.policy.Jitter > 0 {
		d += time.Duration(rand.Int64N(int64(r.policy.Jitter) + 1))
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
