package service

import (
	"context"

	"github.com/SplayLobster/MemoApp2/internal/model"
)

// Draft данные новой заметки до присвоения ID
type Draft struct {
	Kind    model.Kind
	Title   string
	Content string
	Items   []model.Item
	Author  string
}

// NoteService интерфейс для бизнес-логики работы с заметками
type NoteService interface {
	// Create создает новую заметку из черновика
	Create(ctx context.Context, draft Draft) (model.Note, error)

	// Get возвращает заметку по её ID
	Get(ctx context.Context, id string) (model.Note, error)

	// List возвращает список всех заметок в порядке хранения
	List(ctx context.Context) ([]model.Note, error)

	// Update применяет patch к существующей заметке
	Update(ctx context.Context, id string, patch model.Patch) (model.Note, error)

	// Delete удаляет заметку по ID
	Delete(ctx context.Context, id string) error

	// SetEditing отмечает, что заметка открыта (или закрыта) на редактирование
	SetEditing(ctx context.Context, id string, editing bool) (model.Note, error)
}
