package tag

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const MaxNameLength = 100

// Tag is a user owned label. Names are unique per owner.
type Tag struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	Color     string
	CreatedAt time.Time
	UpdatedAt time.Time

	// MemoryCount is filled by listings only.
	MemoryCount int64
}

// NormalizeName trims surrounding whitespace; comparison is exact after that.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// New builds a tag with a normalized name.
func New(userID uuid.UUID, name, color string, now time.Time) *Tag {
	return &Tag{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      NormalizeName(name),
		Color:     color,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
