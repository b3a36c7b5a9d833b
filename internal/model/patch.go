package model

import "time"

// Patch изменение заметки. Заданные (не nil) поля перекрывают существующие,
// незаданные сохраняются. При Replace заметка заменяется целиком,
// и незаданные поля сбрасываются.
type Patch struct {
	Replace   bool
	Kind      *Kind
	Title     *string
	Content   *string
	Items     *[]Item
	Timestamp *time.Time
	Author    *string
	IsEditing *bool
}

// ReplaceWith строит патч полной замены из заметки
func ReplaceWith(n Note) Patch {
	n = n.Clone()
	return Patch{
		Replace:   true,
		Kind:      &n.Kind,
		Title:     &n.Title,
		Content:   &n.Content,
		Items:     &n.Items,
		Timestamp: &n.Timestamp,
		Author:    &n.Author,
		IsEditing: &n.IsEditing,
	}
}

// IsZero сообщает, что патч ничего не меняет
func (p Patch) IsZero() bool {
	return !p.Replace && p.Kind == nil && p.Title == nil && p.Content == nil &&
		p.Items == nil && p.Timestamp == nil && p.Author == nil && p.IsEditing == nil
}

// Apply накладывает патч на заметку и возвращает результат.
// ID заметки патчем не меняется.
func (p Patch) Apply(n Note) Note {
	if p.Replace {
		n = Note{ID: n.ID, Kind: KindClassic}
	} else {
		n = n.Clone()
	}
	if p.Kind != nil {
		n.Kind = *p.Kind
	}
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.Items != nil {
		n.Items = append([]Item(nil), (*p.Items)...)
	}
	if p.Timestamp != nil {
		n.Timestamp = *p.Timestamp
	}
	if p.Author != nil {
		n.Author = *p.Author
	}
	if p.IsEditing != nil {
		n.IsEditing = *p.IsEditing
	}
	return n
}

// NewNote строит новую заметку с указанным id из патча.
// Вариант по умолчанию classic.
func (p Patch) NewNote(id string) Note {
	return p.Apply(Note{ID: id, Kind: KindClassic})
}
