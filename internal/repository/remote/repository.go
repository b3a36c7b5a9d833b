// Package remote реализует репозиторий заметок поверх удаленного хранилища документов.
// Все изменения идут через цикл: чтение, захват флага, изменение в памяти, освобождение.
package remote

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/SplayLobster/MemoApp2/internal/codec"
	"github.com/SplayLobster/MemoApp2/internal/document"
	"github.com/SplayLobster/MemoApp2/internal/lock"
	"github.com/SplayLobster/MemoApp2/internal/model"
	"github.com/SplayLobster/MemoApp2/internal/repository"
)

var _ repository.NoteRepository = (*Repository)(nil)

// Repository репозиторий одного документа key
type Repository struct {
	client document.Client
	key    document.Key
	lock   *lock.Lock
	log    *zap.SugaredLogger
}

// New создает репозиторий документа key
func New(client document.Client, key document.Key, opts lock.Options, log *zap.SugaredLogger) *Repository {
	log = log.With("document", key.String())
	r := &Repository{client: client, key: key, log: log}
	r.lock = lock.New(r, opts, log)
	return r
}

// Load читает и разбирает документ
func (r *Repository) Load(ctx context.Context) (model.Document, error) {
	data, err := r.client.Fetch(ctx, r.key)
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			r.log.Debugw("document not found, starting empty")
			return model.Document{Notes: model.Collection{}}, nil
		}
		return model.Document{}, fmt.Errorf("%w: %w", repository.ErrLoadFailed, err)
	}

	env, err := codec.Decode(data)
	if err != nil {
		r.log.Errorw("document is malformed", "error", err, "bytes", len(data))
		return model.Document{}, fmt.Errorf("%w: %w", repository.ErrLoadFailed, err)
	}
	if env.Format == codec.FormatLegacy {
		r.log.Infow("legacy document format, will be rewritten on next save", "notes", len(env.Notes))
	}
	return env.Document(), nil
}

// Save кодирует и записывает документ целиком
func (r *Repository) Save(ctx context.Context, notes model.Collection, occ model.Occupancy) error {
	data, err := codec.Encode(notes, occ)
	if err != nil {
		return fmt.Errorf("%w: %w", repository.ErrSaveFailed, err)
	}
	if err := r.client.Store(ctx, r.key, data); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrSaveFailed, err)
	}
	return nil
}

// Update применяет patch к заметке noteID: перезапись полей для существующей,
// добавление в конец для отсутствующей
func (r *Repository) Update(ctx context.Context, noteID string, patch model.Patch) error {
	if noteID == "" {
		return errors.New("id cannot be empty")
	}

	return r.mutate(ctx, "update", func(notes model.Collection) (model.Collection, error) {
		if i := notes.IndexOf(noteID); i >= 0 {
			notes[i] = patch.Apply(notes[i])
			return notes, nil
		}
		return append(notes, patch.NewNote(noteID)), nil
	})
}

// Patch изменяет только существующую заметку noteID.
// Проверка существования и валидация результата выполняются под захватом,
// на документе, прочитанном при захвате.
func (r *Repository) Patch(ctx context.Context, noteID string, patch model.Patch) (model.Note, error) {
	if noteID == "" {
		return model.Note{}, errors.New("id cannot be empty")
	}

	var updated model.Note
	err := r.mutate(ctx, "patch", func(notes model.Collection) (model.Collection, error) {
		i := notes.IndexOf(noteID)
		if i < 0 {
			return notes, fmt.Errorf("%w: %s", repository.ErrNoteNotFound, noteID)
		}
		n := patch.Apply(notes[i])
		if err := n.Validate(); err != nil {
			return notes, err
		}
		notes[i] = n
		updated = n.Clone()
		return notes, nil
	})
	if err != nil {
		return model.Note{}, err
	}
	return updated, nil
}

// Delete удаляет заметку noteID.
// Для отсутствующей заметки документ освобождается без изменений и возвращается ErrNoteNotFound.
func (r *Repository) Delete(ctx context.Context, noteID string) error {
	if noteID == "" {
		return errors.New("id cannot be empty")
	}

	return r.mutate(ctx, "delete", func(notes model.Collection) (model.Collection, error) {
		i := notes.IndexOf(noteID)
		if i < 0 {
			return notes, fmt.Errorf("%w: %s", repository.ErrNoteNotFound, noteID)
		}
		return append(notes[:i:i], notes[i+1:]...), nil
	})
}

// mutate выполняет цикл захвата документа. Ошибка fn не отменяет освобождение:
// документ освобождается с неизмененными заметками.
func (r *Repository) mutate(ctx context.Context, op string, fn func(model.Collection) (model.Collection, error)) error {
	lease, doc, err := r.lock.Acquire(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrSaveFailed) {
			r.log.Errorw("claim failed", "op", op, "error", err)
			return fmt.Errorf("%w: %w", repository.ErrClaimFailed, err)
		}
		return err
	}
	r.log.Debugw("document claimed", "op", op, "owner", lease.Owner, "reclaimed", lease.Reclaimed)

	notes := doc.Notes.Clone()
	updated, fnErr := fn(notes)
	if fnErr != nil {
		updated = doc.Notes
	}

	if err := r.lock.Release(ctx, lease, updated); err != nil {
		if r.lock.LeaseTTL() == 0 {
			r.log.Errorw("release failed, document left occupied",
				"hazard", "lock_liveness",
				"op", op,
				"error", err,
			)
		} else {
			r.log.Errorw("release failed", "op", op, "lease_expires_at", lease.ExpiresAt, "error", err)
		}
		return fmt.Errorf("%w: %w", repository.ErrReleaseFailed, err)
	}

	if fnErr != nil {
		return fnErr
	}
	r.log.Infow("document updated", "op", op, "notes", len(updated))
	return nil
}
