package dbtypes

import (
	"errors"
	"time"
)

var (
	ErrTitleRequired    = errors.New("title must not be empty")
	ErrSubtitleRequired = errors.New("subtitle must not be empty")
	ErrUserIDRequired   = errors.New("user ID must not be empty")
)

// Feed item types.  Documents whose type field is missing decode as
// FeedTypeUnknown; items created here default to FeedTypeOther.
const (
	FeedTypeTerritoryConquered = "territoryConquered"
	FeedTypeLevelUp            = "levelUp"
	FeedTypeAchievement        = "achievement"
	FeedTypeChallenge          = "challenge"
	FeedTypeOther              = "other"
	FeedTypeUnknown            = "unknown"
)

const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

// FeedItem is an entry in a player's activity feed.
type FeedItem struct {
	ID              string    `firestore:"-"`
	Date            time.Time `firestore:"date"`
	IsPersonal      bool      `firestore:"isPersonal"`
	Rarity          string    `firestore:"rarity"`
	RelatedUserName string    `firestore:"relatedUserName"`
	Subtitle        string    `firestore:"subtitle"`
	Title           string    `firestore:"title"`
	Type            string    `firestore:"type"`
	UserID          string    `firestore:"userId"`
	XPEarned        int64     `firestore:"xpEarned"`
}

func DecodeFeedItem(id string, fields map[string]any) *FeedItem {
	f := &FeedItem{
		ID:              id,
		Date:            timeField(fields, "date"),
		IsPersonal:      boolField(fields, "isPersonal", true),
		Rarity:          stringField(fields, "rarity", RarityCommon),
		RelatedUserName: stringField(fields, "relatedUserName", ""),
		Subtitle:        stringField(fields, "subtitle", ""),
		Title:           stringField(fields, "title", ""),
		Type:            stringField(fields, "type", FeedTypeUnknown),
		UserID:          stringField(fields, "userId", ""),
		XPEarned:        intField(fields, "xpEarned", 0),
	}
	if f.XPEarned < 0 {
		f.XPEarned = 0
	}
	return f
}

func (f *FeedItem) Fields() map[string]any {
	return map[string]any{
		"date":            f.Date,
		"isPersonal":      f.IsPersonal,
		"rarity":          f.Rarity,
		"relatedUserName": f.RelatedUserName,
		"subtitle":        f.Subtitle,
		"title":           f.Title,
		"type":            f.Type,
		"userId":          f.UserID,
		"xpEarned":        f.XPEarned,
	}
}

// NewFeedItem fills in the creation defaults: dated now, personal, common,
// type "other", no XP.
func NewFeedItem(title, subtitle, userID string) *FeedItem {
	return &FeedItem{
		Date:       Now(),
		IsPersonal: true,
		Rarity:     RarityCommon,
		Subtitle:   subtitle,
		Title:      title,
		Type:       FeedTypeOther,
		UserID:     userID,
	}
}

func (f *FeedItem) Validate() error {
	switch {
	case f.Title == "":
		return ErrTitleRequired
	case f.Subtitle == "":
		return ErrSubtitleRequired
	case f.UserID == "":
		return ErrUserIDRequired
	}
	return nil
}
