package memory

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Metadata is the user supplied description of an upload.
type Metadata struct {
	Title       string      `json:"title" validate:"max=255"`
	Description string      `json:"description"`
	Topic       string      `json:"topic" validate:"max=100"`
	Mood        *int        `json:"mood" validate:"omitempty,min=1,max=5"`
	People      []string    `json:"people" validate:"omitempty,dive,min=1,max=255"`
	TagIDs      []uuid.UUID `json:"tag_ids"`
	MemoryDate  *time.Time  `json:"memory_date"`
}

// Normalize trims free text fields and drops blank people entries.
func (m Metadata) Normalize() Metadata {
	m.Title = strings.TrimSpace(m.Title)
	m.Description = strings.TrimSpace(m.Description)
	m.Topic = strings.TrimSpace(m.Topic)

	people := make([]string, 0, len(m.People))
	for _, p := range m.People {
		if p = strings.TrimSpace(p); p != "" {
			people = append(people, p)
		}
	}
	m.People = people
	return m
}

// Update is a partial metadata change; nil fields are left alone.
type Update struct {
	Title       *string    `json:"title" validate:"omitempty,max=255"`
	Description *string    `json:"description"`
	Topic       *string    `json:"topic" validate:"omitempty,max=100"`
	Mood        *int       `json:"mood" validate:"omitempty,min=1,max=5"`
	People      []string   `json:"people" validate:"omitempty,dive,min=1,max=255"`
	MemoryDate  *time.Time `json:"memory_date"`

	// TagIDs replaces the tag set when non-nil; an empty slice clears it.
	TagIDs []uuid.UUID `json:"tag_ids"`
}

// Apply copies the set fields of u onto m.
func (u Update) Apply(m *Memory, now time.Time) {
	if u.Title != nil {
		m.Title = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		m.Description = strings.TrimSpace(*u.Description)
	}
	if u.Topic != nil {
		m.Topic = strings.TrimSpace(*u.Topic)
	}
	if u.Mood != nil {
		m.Mood = u.Mood
	}
	if u.People != nil {
		m.People = Metadata{People: u.People}.Normalize().People
	}
	if u.MemoryDate != nil {
		m.MemoryDate = u.MemoryDate
	}
	m.UpdatedAt = now
}

// ListFilter narrows a memory listing. Zero values mean "any".
type ListFilter struct {
	MediaType MediaType
	Status    Status
	Topic     string
	Mood      *int
	Search    string
	TagIDs    []uuid.UUID
	StartDate *time.Time
	EndDate   *time.Time
}
