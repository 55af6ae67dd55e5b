package dbtypes

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FeedTypes lists the selectable feed item types in display order.
var FeedTypes = []string{
	FeedTypeTerritoryConquered,
	FeedTypeLevelUp,
	FeedTypeAchievement,
	FeedTypeChallenge,
	FeedTypeOther,
}

var feedTypeNames = map[string]string{
	FeedTypeTerritoryConquered: "Territory Conquered",
	FeedTypeLevelUp:            "Level Up",
	FeedTypeAchievement:        "Achievement",
	FeedTypeChallenge:          "Challenge",
	FeedTypeOther:              "Other",
}

// FeedTypeDisplayName falls back to the raw value for types it doesn't know.
func FeedTypeDisplayName(t string) string {
	if name, ok := feedTypeNames[t]; ok {
		return name
	}
	return t
}

var Rarities = []string{
	RarityCommon,
	RarityRare,
	RarityEpic,
	RarityLegendary,
}

func RarityDisplayName(r string) string {
	return cases.Title(language.English).String(r)
}
