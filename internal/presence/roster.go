// Package presence tracks which players are currently connected to a game session.
//
// Roster is a value type: Join and Leave return a new Roster and never mutate the
// receiver, so the same implementation backs the authoritative server state and the
// pure client-side reducer.
package presence

import "strings"

// Member is one connected player.
type Member struct {
	PlayerID string `json:"player_id"`
	Nickname string `json:"nickname"`
}

// Roster is the ordered set of connected players, in join order.
type Roster struct {
	members []Member
}

// FromMembers builds a roster from a snapshot, dropping duplicate player ids.
func FromMembers(members []Member) Roster {
	var r Roster
	for _, m := range members {
		r, _ = r.Join(m)
	}
	return r
}

// Join adds m unless a member with the same player id is already present.
// A member without a player id is deduplicated by nickname instead.
func (r Roster) Join(m Member) (Roster, bool) {
	for _, existing := range r.members {
		if m.PlayerID != "" && existing.PlayerID == m.PlayerID {
			return r, false
		}
		if m.PlayerID == "" && existing.Nickname == m.Nickname {
			return r, false
		}
	}
	next := make([]Member, len(r.members), len(r.members)+1)
	copy(next, r.members)
	return Roster{members: append(next, m)}, true
}

// Leave removes the member with playerID. When playerID is empty or unknown it falls
// back to removing the first member whose nickname matches.
func (r Roster) Leave(playerID, nickname string) (Roster, bool) {
	idx := -1
	if playerID != "" {
		idx = r.indexOf(func(m Member) bool { return m.PlayerID == playerID })
	}
	if idx < 0 && nickname != "" {
		idx = r.indexOf(func(m Member) bool { return m.Nickname == nickname })
	}
	if idx < 0 {
		return r, false
	}

	next := make([]Member, 0, len(r.members)-1)
	next = append(next, r.members[:idx]...)
	next = append(next, r.members[idx+1:]...)
	return Roster{members: next}, true
}

// Contains reports whether playerID is connected.
func (r Roster) Contains(playerID string) bool {
	return r.indexOf(func(m Member) bool { return m.PlayerID == playerID }) >= 0
}

// ByNickname finds a connected member whose nickname matches, ignoring case and surrounding space.
func (r Roster) ByNickname(nickname string) (Member, bool) {
	key := NormalizeNickname(nickname)
	idx := r.indexOf(func(m Member) bool { return NormalizeNickname(m.Nickname) == key })
	if idx < 0 {
		return Member{}, false
	}
	return r.members[idx], true
}

// Members returns a copy of the roster in join order.
func (r Roster) Members() []Member {
	out := make([]Member, len(r.members))
	copy(out, r.members)
	return out
}

// Len is the number of connected members.
func (r Roster) Len() int {
	return len(r.members)
}

func (r Roster) indexOf(match func(Member) bool) int {
	for i, m := range r.members {
		if match(m) {
			return i
		}
	}
	return -1
}

// NormalizeNickname is the comparison key for nickname uniqueness.
func NormalizeNickname(nickname string) string {
	return strings.ToLower(strings.TrimSpace(nickname))
}
