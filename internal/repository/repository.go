package repository

import (
	"context"
	"errors"

	"github.com/SplayLobster/MemoApp2/internal/model"
)

var (
	// ErrLoadFailed документ не удалось прочитать или разобрать
	ErrLoadFailed = errors.New("load notes failed")
	// ErrSaveFailed документ не удалось закодировать или записать
	ErrSaveFailed = errors.New("save notes failed")
	// ErrClaimFailed не удалось записать флаг занятости
	ErrClaimFailed = errors.New("claim document failed")
	// ErrReleaseFailed не удалось записать результат и освободить документ.
	// Документ остается занятым.
	ErrReleaseFailed = errors.New("release document failed")
	// ErrNoteNotFound заметки с таким ID нет в документе
	ErrNoteNotFound = errors.New("note not found")
)

// NoteRepository интерфейс для работы с заметками в общем документе хранилища
type NoteRepository interface {
	// Load читает документ целиком. Несуществующий документ читается как пустой и свободный.
	Load(ctx context.Context) (model.Document, error)

	// Save перезаписывает документ целиком
	Save(ctx context.Context, notes model.Collection, occ model.Occupancy) error

	// Update применяет patch к заметке noteID под блокировкой документа.
	// Если заметки нет, она добавляется в конец коллекции.
	Update(ctx context.Context, noteID string, patch model.Patch) error

	// Patch применяет patch к существующей заметке noteID под блокировкой документа
	// и возвращает результат. Отсутствующая заметка не создается (ErrNoteNotFound),
	// невалидный результат не записывается. В обоих случаях документ освобождается без изменений.
	Patch(ctx context.Context, noteID string, patch model.Patch) (model.Note, error)

	// Delete удаляет заметку noteID под блокировкой документа
	Delete(ctx context.Context, noteID string) error
}
