// Package lock реализует кооперативную блокировку документа через флаг занятости,
// который хранится в самом документе рядом с заметками.
//
// Захват записывает флаг вместе с неизмененными заметками, освобождение
// записывает новые заметки со сброшенным флагом одной операцией.
// Взаимное исключение соблюдается, только если все клиенты следуют протоколу.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SplayLobster/MemoApp2/internal/model"
)

var (
	// ErrContended документ занят другим клиентом
	ErrContended = errors.New("document is occupied")
	// ErrRetriesExhausted политика повторов исчерпана, документ так и не освободился
	ErrRetriesExhausted = errors.New("lock retries exhausted")
	// ErrLeaseLost аренда истекла и документ захвачен другим клиентом
	ErrLeaseLost = errors.New("lease lost")
)

// DefaultReleaseTimeout ограничение на освобождение после отмены вызывающего контекста
const DefaultReleaseTimeout = 10 * time.Second

// State состояние флага занятости
type State int

const (
	Free State = iota
	Occupied
)

func (s State) String() string {
	switch s {
	case Free:
		return "free"
	case Occupied:
		return "occupied"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StateOf возвращает состояние флага
func StateOf(o model.Occupancy) State {
	if o.Occupied {
		return Occupied
	}
	return Free
}

// Store чтение и запись документа целиком
type Store interface {
	Load(ctx context.Context) (model.Document, error)
	Save(ctx context.Context, notes model.Collection, occ model.Occupancy) error
}

// Lease результат успешного захвата.
// Owner и ExpiresAt заполнены только при LeaseTTL > 0.
type Lease struct {
	Owner      string
	ExpiresAt  time.Time
	AcquiredAt time.Time
	// Reclaimed захват произошел поверх просроченной аренды
	Reclaimed bool
}

// Options настройки блокировки
type Options struct {
	Backoff Backoff
	// LeaseTTL 0 отключает аренду: флаг без владельца и срока
	LeaseTTL       time.Duration
	ReleaseTimeout time.Duration

	Now      func() time.Time
	NewOwner func() string
}

// Lock блокировка поверх документа
type Lock struct {
	store Store
	opts  Options
	log   *zap.SugaredLogger
}

// New создает блокировку над store
func New(store Store, opts Options, log *zap.SugaredLogger) *Lock {
	if opts.ReleaseTimeout <= 0 {
		opts.ReleaseTimeout = DefaultReleaseTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewOwner == nil {
		opts.NewOwner = func() string { return uuid.NewString() }
	}
	if opts.Backoff.Now == nil {
		opts.Backoff.Now = opts.Now
	}
	return &Lock{store: store, opts: opts, log: log}
}

// LeaseTTL возвращает срок аренды
func (l *Lock) LeaseTTL() time.Duration {
	return l.opts.LeaseTTL
}

// TryAcquire пробует захватить документ doc, прочитанный вызывающим.
// Свободный документ захватывается одной записью флага с неизмененными заметками.
// Для занятого возвращается ErrContended без записи.
func (l *Lock) TryAcquire(ctx context.Context, doc model.Document) (*Lease, error) {
	now := l.opts.Now()
	lease := &Lease{AcquiredAt: now}

	if StateOf(doc.Occupancy) == Occupied {
		if !doc.Occupancy.Expired(now) {
			return nil, ErrContended
		}
		l.log.Warnw("reclaiming stale lock",
			"owner", doc.Occupancy.Owner,
			"expired_at", doc.Occupancy.ExpiresAt,
		)
		lease.Reclaimed = true
	}

	occ := model.Occupancy{Occupied: true}
	if l.opts.LeaseTTL > 0 {
		lease.Owner = l.opts.NewOwner()
		lease.ExpiresAt = now.Add(l.opts.LeaseTTL)
		occ.Owner = lease.Owner
		occ.ExpiresAt = lease.ExpiresAt
	}

	if err := l.store.Save(ctx, doc.Notes, occ); err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}
	return lease, nil
}

// Acquire читает документ и захватывает его, ожидая по политике Backoff, пока он занят.
// Возвращает аренду и документ на момент захвата.
func (l *Lock) Acquire(ctx context.Context) (*Lease, model.Document, error) {
	retry := l.opts.Backoff.Start()
	for {
		doc, err := l.store.Load(ctx)
		if err != nil {
			return nil, model.Document{}, err
		}

		lease, err := l.TryAcquire(ctx, doc)
		if err == nil {
			return lease, doc, nil
		}
		if !errors.Is(err, ErrContended) {
			return nil, model.Document{}, err
		}

		l.log.Debugw("document occupied, waiting", "attempt", retry.Attempts())
		if err := retry.Next(ctx); err != nil {
			if errors.Is(err, ErrRetriesExhausted) {
				l.log.Warnw("lock retries exhausted", "attempts", retry.Attempts())
			}
			return nil, model.Document{}, err
		}
	}
}

// Release освобождает документ, записывая notes со сброшенным флагом.
// Выполняется даже после отмены ctx, в пределах ReleaseTimeout.
// При включенной аренде сначала проверяет, что документ все еще принадлежит lease.
func (l *Lock) Release(ctx context.Context, lease *Lease, notes model.Collection) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.opts.ReleaseTimeout)
	defer cancel()

	if lease != nil && lease.Owner != "" {
		doc, err := l.store.Load(ctx)
		if err != nil {
			return fmt.Errorf("verify lease: %w", err)
		}
		if !doc.Occupancy.Occupied || doc.Occupancy.Owner != lease.Owner {
			l.log.Errorw("lease lost before release",
				"owner", lease.Owner,
				"current_owner", doc.Occupancy.Owner,
				"expires_at", lease.ExpiresAt,
			)
			return fmt.Errorf("%w: document owned by %q", ErrLeaseLost, doc.Occupancy.Owner)
		}
	}

	return l.store.Save(ctx, notes, model.Occupancy{})
}
