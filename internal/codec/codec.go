// Package codec кодирует коллекцию заметок и флаг занятости в формат
// хранимого документа: [ [<заметки>...], [ {"isOccupied": <bool>} ] ].
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SplayLobster/MemoApp2/internal/converter"
	"github.com/SplayLobster/MemoApp2/internal/model"
)

// ErrMalformedEnvelope возвращается, когда документ не совпадает ни с одной известной формой
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Format форма, в которой был записан документ
type Format int

const (
	// FormatEnvelope двухэлементный конверт с флагом занятости
	FormatEnvelope Format = iota
	// FormatLegacy голый массив заметок без флага
	FormatLegacy
)

func (f Format) String() string {
	switch f {
	case FormatEnvelope:
		return "envelope"
	case FormatLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Envelope раскодированный документ с именованными полями
type Envelope struct {
	Format    Format
	Notes     model.Collection
	Occupancy model.Occupancy
}

// Document возвращает содержимое конверта как доменный документ
func (e Envelope) Document() model.Document {
	return model.Document{Notes: e.Notes, Occupancy: e.Occupancy}
}

type occupancyRecord struct {
	IsOccupied bool            `json:"isOccupied"`
	Owner      string          `json:"owner,omitempty"`
	ExpiresAt  *converter.Time `json:"expiresAt,omitempty"`
}

// Encode сериализует коллекцию и флаг занятости.
// Заметки неизвестных вариантов записываются как null, кодирование при этом не падает.
func Encode(notes model.Collection, occ model.Occupancy) ([]byte, error) {
	rec := occupancyRecord{IsOccupied: occ.Occupied}
	if occ.Occupied {
		rec.Owner = occ.Owner
		if !occ.ExpiresAt.IsZero() {
			rec.ExpiresAt = &converter.Time{Time: occ.ExpiresAt}
		}
	}

	envelope := [2]any{
		converter.ModelsToRecords(notes),
		[]occupancyRecord{rec},
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal: %w", err)
	}
	return data, nil
}

// Decode разбирает хранимый документ.
// Принимает двухэлементный конверт и устаревший голый массив заметок.
func Decode(data []byte) (Envelope, error) {
	var top []json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return Envelope{}, fmt.Errorf("%w: top level is not an array: %v", ErrMalformedEnvelope, err)
	}
	if top == nil {
		return Envelope{}, fmt.Errorf("%w: top level is null", ErrMalformedEnvelope)
	}

	switch {
	case isLegacy(top):
		notes, err := decodeNotes(top)
		if err != nil {
			return Envelope{}, err
		}
		return Envelope{Format: FormatLegacy, Notes: notes}, nil

	case len(top) == 2 && kindOf(top[0]) == '[' && kindOf(top[1]) == '[':
		var rawNotes []json.RawMessage
		if err := json.Unmarshal(top[0], &rawNotes); err != nil {
			return Envelope{}, fmt.Errorf("%w: notes element: %v", ErrMalformedEnvelope, err)
		}
		notes, err := decodeNotes(rawNotes)
		if err != nil {
			return Envelope{}, err
		}
		occ, err := decodeOccupancy(top[1])
		if err != nil {
			return Envelope{}, err
		}
		return Envelope{Format: FormatEnvelope, Notes: notes, Occupancy: occ}, nil

	default:
		return Envelope{}, fmt.Errorf("%w: expected 2-element envelope, got %d elements", ErrMalformedEnvelope, len(top))
	}
}

// isLegacy: каждый элемент является объектом заметки или null
func isLegacy(top []json.RawMessage) bool {
	for _, raw := range top {
		if k := kindOf(raw); k != '{' && k != 'n' {
			return false
		}
	}
	return true
}

func decodeNotes(raws []json.RawMessage) (model.Collection, error) {
	notes := make(model.Collection, 0, len(raws))
	for i, raw := range raws {
		if kindOf(raw) == 'n' {
			continue
		}
		var rec converter.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("%w: note %d: %v", ErrMalformedEnvelope, i, err)
		}
		notes = append(notes, converter.RecordToModel(rec))
	}
	return notes, nil
}

// decodeOccupancy: отсутствующая запись означает "свободно"
func decodeOccupancy(raw json.RawMessage) (model.Occupancy, error) {
	var entries []*occupancyRecord
	if err := json.Unmarshal(raw, &entries); err != nil {
		return model.Occupancy{}, fmt.Errorf("%w: occupancy element: %v", ErrMalformedEnvelope, err)
	}
	if len(entries) == 0 || entries[0] == nil {
		return model.Occupancy{}, nil
	}

	e := entries[0]
	occ := model.Occupancy{Occupied: e.IsOccupied}
	if e.IsOccupied {
		occ.Owner = e.Owner
		if e.ExpiresAt != nil {
			occ.ExpiresAt = e.ExpiresAt.Time
		}
	}
	return occ, nil
}

func kindOf(raw json.RawMessage) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}
