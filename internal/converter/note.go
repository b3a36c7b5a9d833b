package converter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/SplayLobster/MemoApp2/internal/model"
)

// ItemRecord пункт заметки-списка в формате хранилища
type ItemRecord struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Record заметка в формате хранилища. Набор полей зависит от type.
type Record struct {
	ID        ID            `json:"id"`
	Type      string        `json:"type"`
	Title     string        `json:"title"`
	Content   *string       `json:"content,omitempty"`
	Items     *[]ItemRecord `json:"items,omitempty"`
	Timestamp *Time         `json:"timestamp,omitempty"`
	Author    string        `json:"author"`
	IsEditing bool          `json:"isEditing"`
}

// ID идентификатор заметки на проводе.
// Старые клиенты писали числовые id, они читаются как десятичная строка.
type ID string

// UnmarshalJSON принимает строку или число
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("note id must be a string or a number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Time метка времени на проводе: RFC3339 строка, при чтении также unix-миллисекунды
type Time struct {
	time.Time
}

// MarshalJSON пишет RFC3339Nano в UTC
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON читает RFC3339 строку или число миллисекунд
func (t *Time) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}
	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", data, err)
	}
	t.Time = time.UnixMilli(ms).UTC()
	return nil
}

// ModelToRecord конвертирует domain модель в запись хранилища.
// Для неизвестного варианта возвращает ok=false.
func ModelToRecord(note model.Note) (Record, bool) {
	rec := Record{
		ID:        ID(note.ID),
		Type:      string(note.Kind),
		Title:     note.Title,
		Author:    note.Author,
		IsEditing: note.IsEditing,
	}
	if !note.Timestamp.IsZero() {
		rec.Timestamp = &Time{Time: note.Timestamp}
	}

	switch note.Kind {
	case model.KindClassic:
		content := note.Content
		rec.Content = &content
	case model.KindList:
		items := make([]ItemRecord, len(note.Items))
		for i, it := range note.Items {
			items[i] = ItemRecord{Text: it.Text, Done: it.Done}
		}
		rec.Items = &items
	default:
		return Record{}, false
	}

	return rec, true
}

// RecordToModel конвертирует запись хранилища в domain модель
func RecordToModel(rec Record) model.Note {
	note := model.Note{
		ID:        string(rec.ID),
		Kind:      model.Kind(rec.Type),
		Title:     rec.Title,
		Author:    rec.Author,
		IsEditing: rec.IsEditing,
	}
	if rec.Timestamp != nil {
		note.Timestamp = rec.Timestamp.Time
	}
	if rec.Content != nil {
		note.Content = *rec.Content
	}
	if rec.Items != nil {
		note.Items = make([]model.Item, len(*rec.Items))
		for i, it := range *rec.Items {
			note.Items[i] = model.Item{Text: it.Text, Done: it.Done}
		}
	}
	return note
}

// ModelsToRecords конвертирует коллекцию. Заметка неизвестного варианта
// остается на своей позиции как nil (null на проводе), при чтении такие записи пропускаются.
func ModelsToRecords(notes model.Collection) []*Record {
	records := make([]*Record, len(notes))
	for i, note := range notes {
		if rec, ok := ModelToRecord(note); ok {
			records[i] = &rec
		}
	}
	return records
}

// RecordsToModels конвертирует записи хранилища в коллекцию
func RecordsToModels(records []Record) model.Collection {
	notes := make(model.Collection, len(records))
	for i, rec := range records {
		notes[i] = RecordToModel(rec)
	}
	return notes
}
