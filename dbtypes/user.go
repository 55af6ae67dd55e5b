package dbtypes

import (
	"errors"
	"regexp"
	"time"
)

var (
	ErrDisplayNameRequired = errors.New("display name must not be empty")
	ErrInvalidEmail        = errors.New("email address is not valid")
)

// User is a player account.
//
// Level and XP are progress counters; the reset and wipe workflows put them
// back to 1 and 0.  PreviousRank is written when a weekly ranking is closed.
// Clients compare ForceLogoutVersion against their own copy and sign out when
// it moves.
type User struct {
	ID                 string     `firestore:"-"`
	DisplayName        string     `firestore:"displayName"`
	Email              *string    `firestore:"email,omitempty"`
	AvatarURL          *string    `firestore:"avatarURL,omitempty"`
	JoinedAt           time.Time  `firestore:"joinedAt"`
	LastUpdated        *time.Time `firestore:"lastUpdated,omitempty"`
	Level              int64      `firestore:"level"`
	XP                 int64      `firestore:"xp"`
	PreviousRank       *int64     `firestore:"previousRank,omitempty"`
	ForceLogoutVersion *int64     `firestore:"forceLogoutVersion,omitempty"`
}

// DecodeUser never fails.  Level is at least 1 and XP at least 0.
func DecodeUser(id string, fields map[string]any) *User {
	u := &User{
		ID:                 id,
		DisplayName:        stringField(fields, "displayName", ""),
		Email:              optStringField(fields, "email"),
		AvatarURL:          optStringField(fields, "avatarURL"),
		JoinedAt:           timeField(fields, "joinedAt"),
		LastUpdated:        optTimeField(fields, "lastUpdated"),
		Level:              intField(fields, "level", 1),
		XP:                 intField(fields, "xp", 0),
		PreviousRank:       optIntField(fields, "previousRank"),
		ForceLogoutVersion: optIntField(fields, "forceLogoutVersion"),
	}
	if u.Level < 1 {
		u.Level = 1
	}
	if u.XP < 0 {
		u.XP = 0
	}
	return u
}

// Fields encodes the whole record.  The ID is the document name and is not
// stored as a field.
func (u *User) Fields() map[string]any {
	fields := map[string]any{
		"displayName": u.DisplayName,
		"joinedAt":    u.JoinedAt,
		"level":       u.Level,
		"xp":          u.XP,
	}
	putOptString(fields, "email", u.Email)
	putOptString(fields, "avatarURL", u.AvatarURL)
	putOptTime(fields, "lastUpdated", u.LastUpdated)
	putOptInt(fields, "previousRank", u.PreviousRank)
	putOptInt(fields, "forceLogoutVersion", u.ForceLogoutVersion)
	return fields
}

// NewUser returns a fresh level-1 account.
func NewUser(displayName string, email *string) *User {
	now := Now()
	return &User{
		DisplayName: displayName,
		Email:       email,
		JoinedAt:    now,
		LastUpdated: &now,
		Level:       1,
		XP:          0,
	}
}

// Validate applies the account form rules: a display name is required, and
// an email, if present, must look like one.
func (u *User) Validate() error {
	if u.DisplayName == "" {
		return ErrDisplayNameRequired
	}
	if u.Email != nil && *u.Email != "" && !ValidEmail(*u.Email) {
		return ErrInvalidEmail
	}
	return nil
}

var emailRegexp = regexp.MustCompile(`^[A-Z0-9a-z._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,64}$`)

func ValidEmail(s string) bool {
	return emailRegexp.MatchString(s)
}
