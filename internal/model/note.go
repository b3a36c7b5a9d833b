package model

import (
	"errors"
	"strings"
	"time"
)

// Kind вариант заметки (дискриминатор объединения)
type Kind string

const (
	// KindClassic текстовая заметка с полем Content
	KindClassic Kind = "classic"
	// KindList заметка-список с полем Items
	KindList Kind = "list"
)

// Known проверяет, что вариант заметки поддерживается
func (k Kind) Known() bool {
	return k == KindClassic || k == KindList
}

// Item пункт заметки-списка
type Item struct {
	Text string
	Done bool
}

// Note представляет заметку (доменная модель)
// Для KindClassic используется Content, для KindList используется Items
type Note struct {
	ID        string    // Идентификатор, уникален в пределах коллекции
	Kind      Kind      // Вариант заметки
	Title     string    // Заголовок заметки
	Content   string    // Текст (только classic)
	Items     []Item    // Пункты (только list)
	Timestamp time.Time // Время последнего изменения
	Author    string    // Автор заметки
	IsEditing bool      // Заметка сейчас открыта на редактирование
}

// Validate проверяет валидность заметки
func (n *Note) Validate() error {
	if strings.TrimSpace(n.ID) == "" {
		return errors.New("id cannot be empty")
	}
	if !n.Kind.Known() {
		return errors.New("invalid note kind: " + string(n.Kind))
	}
	if strings.TrimSpace(n.Title) == "" && strings.TrimSpace(n.Content) == "" && len(n.Items) == 0 {
		return errors.New("note cannot be empty")
	}
	return nil
}

// IsEmpty проверяет, пуста ли заметка
func (n *Note) IsEmpty() bool {
	return n.ID == "" && n.Title == "" && n.Content == "" && len(n.Items) == 0
}

// Clone возвращает копию заметки, не разделяющую Items с оригиналом
func (n Note) Clone() Note {
	if n.Items != nil {
		items := make([]Item, len(n.Items))
		copy(items, n.Items)
		n.Items = items
	}
	return n
}

// Collection упорядоченный набор заметок, хранится и изменяется только целиком
type Collection []Note

// IndexOf возвращает позицию заметки с указанным id или -1
func (c Collection) IndexOf(id string) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}

// Find возвращает заметку по id
func (c Collection) Find(id string) (Note, bool) {
	i := c.IndexOf(id)
	if i < 0 {
		return Note{}, false
	}
	return c[i], true
}

// Clone возвращает глубокую копию коллекции
func (c Collection) Clone() Collection {
	if c == nil {
		return nil
	}
	out := make(Collection, len(c))
	for i := range c {
		out[i] = c[i].Clone()
	}
	return out
}
