package model

import (
	"cmp"
	"slices"
)

func sortMembers(members []ChatMember) {
	slices.SortFunc(members, func(a, b ChatMember) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
}

// SortByActivity orders chats by most recent activity, newest first, with the
// chat id as a deterministic tie breaker.
func SortByActivity(chats []Chat) {
	slices.SortStableFunc(chats, func(a, b Chat) int {
		if c := b.ActivityAt().Compare(a.ActivityAt()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
