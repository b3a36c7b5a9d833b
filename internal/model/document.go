package model

import "time"

// Occupancy флаг занятости, хранится в том же документе, что и заметки.
// Owner и ExpiresAt заполняются только при включенной аренде (lease TTL).
type Occupancy struct {
	Occupied  bool
	Owner     string
	ExpiresAt time.Time
}

// Expired сообщает, истекла ли аренда к моменту now.
// Занятость без срока истечения не истекает никогда.
func (o Occupancy) Expired(now time.Time) bool {
	return o.Occupied && !o.ExpiresAt.IsZero() && !now.Before(o.ExpiresAt)
}

// Document раскодированное содержимое хранимого документа
type Document struct {
	Notes     Collection
	Occupancy Occupancy
}
