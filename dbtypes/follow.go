package dbtypes

import "time"

// FollowRelationship is one side of a follow edge.  The document ID is the
// other user's ID; DisplayName and AvatarURL are copied from that user when
// the edge is created and are not kept in sync.
type FollowRelationship struct {
	ID          string     `firestore:"-"`
	DisplayName string     `firestore:"displayName"`
	AvatarURL   *string    `firestore:"avatarURL,omitempty"`
	FollowedAt  *time.Time `firestore:"followedAt,omitempty"`
}

func DecodeFollowRelationship(id string, fields map[string]any) *FollowRelationship {
	return &FollowRelationship{
		ID:          id,
		DisplayName: stringField(fields, "displayName", ""),
		AvatarURL:   optStringField(fields, "avatarURL"),
		FollowedAt:  optTimeField(fields, "followedAt"),
	}
}

func (f *FollowRelationship) Fields() map[string]any {
	fields := map[string]any{
		"displayName": f.DisplayName,
	}
	putOptString(fields, "avatarURL", f.AvatarURL)
	putOptTime(fields, "followedAt", f.FollowedAt)
	return fields
}

// EdgeTo snapshots u as the far end of a follow edge.
func EdgeTo(u *User, at time.Time) *FollowRelationship {
	return &FollowRelationship{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		FollowedAt:  &at,
	}
}
