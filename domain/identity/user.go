package identity

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var guestIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// User is an account record. A guest user has IsGuest set and a GuestID;
// an authenticated user has an Email and no active guest identity.
type User struct {
	ID          uuid.UUID
	Email       string
	ExternalUID string
	Name        string
	Picture     string
	IsGuest     bool
	GuestID     string
	LastSeenAt  *time.Time
	CreatedAt   time.Time
}

// IsAuthenticated reports whether the record belongs to a verified identity.
func (u *User) IsAuthenticated() bool {
	return !u.IsGuest
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidGuestID reports whether id is an acceptable client supplied guest identifier.
func ValidGuestID(id string) bool {
	return guestIDPattern.MatchString(id)
}

// NewAuthenticatedUser builds a user from verified token claims.
func NewAuthenticatedUser(claims Claims, now time.Time) *User {
	return &User{
		ID:          uuid.New(),
		Email:       NormalizeEmail(claims.Email),
		ExternalUID: claims.Subject,
		Name:        claims.Name,
		Picture:     claims.Picture,
		LastSeenAt:  &now,
		CreatedAt:   now,
	}
}

// NewGuestUser builds a guest user keyed by a client supplied identifier.
func NewGuestUser(guestID string, now time.Time) *User {
	return &User{
		ID:         uuid.New(),
		IsGuest:    true,
		GuestID:    guestID,
		LastSeenAt: &now,
		CreatedAt:  now,
	}
}

// Claims are the verified facts a token carries about its holder.
type Claims struct {
	Subject string
	Email   string
	Name    string
	Picture string
}
