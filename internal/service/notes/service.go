package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SplayLobster/MemoApp2/internal/model"
	"github.com/SplayLobster/MemoApp2/internal/repository"
	svc "github.com/SplayLobster/MemoApp2/internal/service"
)

var _ svc.NoteService = (*service)(nil)

type service struct {
	noteRepository repository.NoteRepository
	events         *EventService
	publisher      Publisher
	now            func() time.Time
	newID          func() string
	log            *zap.SugaredLogger
}

// Option настройка сервиса
type Option func(*service)

// WithPublisher добавляет внешний публикатор событий
func WithPublisher(p Publisher) Option {
	return func(s *service) { s.publisher = p }
}

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithIDGenerator подменяет генератор ID заметок
func WithIDGenerator(newID func() string) Option {
	return func(s *service) { s.newID = newID }
}

// NewNoteService создает новый экземпляр сервиса для работы с заметками.
// events может быть nil.
func NewNoteService(noteRepository repository.NoteRepository, events *EventService, log *zap.SugaredLogger, opts ...Option) svc.NoteService {
	s := &service{
		noteRepository: noteRepository,
		events:         events,
		now:            time.Now,
		newID:          uuid.NewString,
		log:            log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create создает новую заметку из черновика
func (s *service) Create(ctx context.Context, draft svc.Draft) (model.Note, error) {
	kind := draft.Kind
	if kind == "" {
		kind = model.KindClassic
	}

	note := model.Note{
		ID:        s.newID(),
		Kind:      kind,
		Title:     strings.TrimSpace(draft.Title),
		Author:    strings.TrimSpace(draft.Author),
		Timestamp: s.now().UTC(),
	}
	switch kind {
	case model.KindList:
		note.Items = append([]model.Item(nil), draft.Items...)
	default:
		note.Content = strings.TrimSpace(draft.Content)
	}

	if err := note.Validate(); err != nil {
		return model.Note{}, err
	}

	// Новый ID отсутствует в документе, Update добавит заметку в конец
	if err := s.noteRepository.Update(ctx, note.ID, model.ReplaceWith(note)); err != nil {
		return model.Note{}, err
	}

	s.publish(ctx, Event{Type: EventCreated, Note: note})
	return note, nil
}

// Get возвращает заметку по её ID
func (s *service) Get(ctx context.Context, id string) (model.Note, error) {
	if id == "" {
		return model.Note{}, errors.New("id cannot be empty")
	}

	doc, err := s.noteRepository.Load(ctx)
	if err != nil {
		return model.Note{}, err
	}

	note, ok := doc.Notes.Find(id)
	if !ok {
		return model.Note{}, fmt.Errorf("%w: %s", repository.ErrNoteNotFound, id)
	}
	return note, nil
}

// List возвращает список всех заметок
func (s *service) List(ctx context.Context) ([]model.Note, error) {
	doc, err := s.noteRepository.Load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Notes, nil
}

// Update применяет patch к существующей заметке и обновляет временную метку.
// Существование заметки и валидность результата проверяет репозиторий под блокировкой документа.
func (s *service) Update(ctx context.Context, id string, patch model.Patch) (model.Note, error) {
	if id == "" {
		return model.Note{}, errors.New("id cannot be empty")
	}

	now := s.now().UTC()
	patch.Timestamp = &now

	updated, err := s.noteRepository.Patch(ctx, id, patch)
	if err != nil {
		return model.Note{}, err
	}

	s.publish(ctx, Event{Type: EventUpdated, Note: updated})
	return updated, nil
}

// Delete удаляет заметку по ID
func (s *service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}

	if err := s.noteRepository.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, Event{Type: EventDeleted, Note: model.Note{ID: id}})
	return nil
}

// SetEditing отмечает заметку открытой или закрытой на редактирование
func (s *service) SetEditing(ctx context.Context, id string, editing bool) (model.Note, error) {
	return s.Update(ctx, id, model.Patch{IsEditing: &editing})
}

func (s *service) publish(ctx context.Context, event Event) {
	if s.events != nil {
		s.events.Publish(event)
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		// Изменение уже записано, ошибка публикации не откатывает операцию
		s.log.Warnw("publish note event failed", "type", event.Type, "note_id", event.Note.ID, "error", err)
	}
}
