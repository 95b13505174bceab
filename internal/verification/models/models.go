package models

import (
	"time"

	id "portfolio/pkg/domain"
)

// Record is the write-once public identity of an evidence instance.
// InstanceID is internal and never leaves the service.
type Record struct {
	Token      string
	InstanceID id.InstanceID
	Title      string
	Category   string
	CreatedAt  time.Time
}

// Summary is the disclosed view of a record. It carries no user identity and no
// field values.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary projects the record onto its disclosed fields.
func (r Record) Summary() Summary {
	return Summary{
		ID:        r.Token,
		Title:     r.Title,
		Category:  r.Category,
		CreatedAt: r.CreatedAt,
	}
}
